package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationConfig represents validation middleware configuration
type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"clock": validateClock,
			"date":  validateDate,
		},
		CustomErrorMessages: map[string]string{
			"required": "Field is required",
			"uuid":     "Must be a UUID",
			"clock":    "Must be a time of day in HH:MM format",
			"date":     "Must be a date in YYYY-MM-DD format",
			"min":      "Value is too small",
			"max":      "Value is too large",
		},
	}
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := timerange.ParseClock(fl.Field().String())
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := timerange.ParseDate(fl.Field().String())
	return err == nil
}

var registerOnce sync.Once

// RegisterValidators installs the custom tags on gin's shared validator.
// It is safe to call more than once.
func RegisterValidators(config ValidationConfig) {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// Validation turns binding errors attached by handlers into a 400 with one
// entry per offending field.
func Validation(config ValidationConfig) gin.HandlerFunc {
	RegisterValidators(config)

	return func(c *gin.Context) {
		c.Next()

		bindErrs := c.Errors.ByType(gin.ErrorTypeBind)
		if len(bindErrs) == 0 || c.Writer.Written() {
			return
		}

		var fields []ValidationError
		for _, e := range bindErrs {
			var errs validator.ValidationErrors
			if !errors.As(e.Err, &errs) {
				continue
			}
			for _, fe := range errs {
				msg := config.CustomErrorMessages[fe.Tag()]
				if msg == "" {
					msg = fmt.Sprintf("Failed on %s", fe.Tag())
				}
				fields = append(fields, ValidationError{Field: fe.Field(), Message: msg})
			}
		}

		c.AbortWithStatusJSON(http.StatusBadRequest, &httputil.Response{
			Status:  "error",
			Code:    int(apperrors.ErrBadRequest),
			Message: "invalid request",
			Errors:  fields,
		})
	}
}
