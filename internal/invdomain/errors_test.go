package invdomain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(E(KindNotFound, "item not found")))
	assert.Equal(t, KindInternal, KindOf(errors.New("raw driver error")))
	assert.Equal(t, KindInternal, KindOf(nil))

	// Kind survives wrapping with fmt.Errorf.
	wrapped := fmt.Errorf("adjust stock: %w", E(KindInvalidDelta, "delta must be nonzero"))
	assert.Equal(t, KindInvalidDelta, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindInvalidDelta))
	assert.False(t, Is(wrapped, KindNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindInternal, "append movement", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "append movement")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRetryable(t *testing.T) {
	assert.True(t, KindInProgress.Retryable())
	assert.True(t, KindTimeout.Retryable())
	assert.False(t, KindDuplicateSKU.Retryable())
	assert.False(t, KindInternal.Retryable())
}
