package handler

import (
	"errors"
	"net/http"
	"reflect"

	"invcore/internal/apierror"
	"invcore/internal/invdomain"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(string(invdomain.KindInvalidInput), "invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeError maps a domain failure kind to an HTTP status and the canonical
// error envelope. Message text comes from the domain error — storage detail
// was already stripped at the repository boundary.
func writeError(c *gin.Context, err error) {
	kind := invdomain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case invdomain.KindInvalidInput, invdomain.KindInvalidCost:
		status = http.StatusBadRequest
	case invdomain.KindNotFound:
		status = http.StatusNotFound
	case invdomain.KindDuplicateSKU, invdomain.KindNonZeroOnHand,
		invdomain.KindInactiveItem, invdomain.KindInvalidDelta,
		invdomain.KindIdempotencyConflict, invdomain.KindInProgress:
		status = http.StatusConflict
	case invdomain.KindTimeout:
		status = http.StatusServiceUnavailable
	}

	detail := "internal error"
	var de *invdomain.Error
	if kind != invdomain.KindInternal && errors.As(err, &de) {
		detail = de.Message
	}
	c.JSON(status, &apierror.APIError{
		Kind:      string(kind),
		Detail:    detail,
		Retryable: kind.Retryable(),
	})
}
