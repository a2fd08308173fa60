package middleware

import (
	"encoding/json"
	"io"

	"github.com/Payphone-Digital/account-security/internal/constants"
	apperrors "github.com/Payphone-Digital/account-security/internal/errors"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/Payphone-Digital/account-security/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

// ValidateJSON decodes the body into a T, validates it and stores it for
// the handler, which reads it back with Body. Invalid input never reaches
// the handler.
func ValidateJSON[T any](v *validator.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		req := new(T)

		if c.Request.Body == nil {
			abortValidation(c, []string{"request body is required"})
			return
		}

		if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxJSONBody)).Decode(req); err != nil {
			logger.WarnWithContext(ctx, "Middleware: JSON decoding failed").
				Path(c.Request.URL.Path).
				Err(err).
				Log()
			abortValidation(c, []string{"request body must be valid JSON"})
			return
		}

		if err := v.Struct(req); err != nil {
			msgs := validation.Messages(err)
			logger.WarnWithContext(ctx, "Middleware: Request validation failed").
				Path(c.Request.URL.Path).
				Int("error_count", len(msgs)).
				Log()
			abortValidation(c, msgs)
			return
		}

		c.Set(constants.GinKeyRequestBody, req)
		c.Next()
	}
}

// Body returns the request decoded by ValidateJSON.
func Body[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(constants.GinKeyRequestBody)
	if !ok {
		return nil, false
	}
	req, ok := v.(*T)
	return req, ok
}

func abortValidation(c *gin.Context, details []string) {
	body := constants.BuildErrorResponse(apperrors.ErrValidation.Message, details)
	body[constants.ResponseFieldCode] = apperrors.ErrValidation.Code
	c.AbortWithStatusJSON(apperrors.ToHTTPStatus(apperrors.ErrValidation), body)
}
