package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDatabaseURL(t *testing.T) {
	cases := map[string]string{
		"postgresql+psycopg://u:p@h:5432/db": "postgresql://u:p@h:5432/db",
		"postgres+psycopg://u:p@h:5432/db":   "postgresql://u:p@h:5432/db",
		"postgres://u:p@h:5432/db":           "postgresql://u:p@h:5432/db",
		"postgresql://u:p@h:5432/db":         "postgresql://u:p@h:5432/db",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDatabaseURL(in))
	}
}

func TestApplySSLDefaults(t *testing.T) {
	// Not required: URL untouched.
	out, err := ApplySSLDefaults("postgresql://u:p@h/db", false)
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u:p@h/db", out)

	// Required and absent: injected.
	out, err = ApplySSLDefaults("postgresql://u:p@h/db", true)
	require.NoError(t, err)
	assert.Contains(t, out, "sslmode=require")

	// An explicit sslmode always wins.
	out, err = ApplySSLDefaults("postgresql://u:p@h/db?sslmode=disable", true)
	require.NoError(t, err)
	assert.Contains(t, out, "sslmode=disable")
	assert.NotContains(t, out, "sslmode=require")
}
