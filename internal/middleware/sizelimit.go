package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/pkg/httputil"
)

// DefaultMaxBodySize fits any booking or availability request many times over.
const DefaultMaxBodySize int64 = 64 << 10

// SizeLimit rejects bodies whose declared length exceeds maxBytes and caps
// reads for chunked bodies.
func SizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, &httputil.Response{
				Status:  "error",
				Code:    http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", maxBytes),
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
