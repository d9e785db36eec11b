package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Code    int         `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewErrorResponse builds the error envelope. Non-AppErrors are reported as
// internal errors without leaking their text.
func NewErrorResponse(err error) (int, *Response) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
	}

	status := appErr.StatusCode()
	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	return status, &Response{
		Status:  "error",
		Code:    int(appErr.Code),
		Message: message,
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	status, resp := NewErrorResponse(err)
	c.JSON(status, resp)
}

// AbortWithError sends an error response and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, resp := NewErrorResponse(err)
	c.AbortWithStatusJSON(status, resp)
}
