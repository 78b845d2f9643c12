package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hera/backend/internal/interfaces/http/dto"
)

// BodyLimit caps request bodies at maxBytes. A declared Content-Length over
// the cap is refused with 413 before any handler runs. A body of unknown
// length is wrapped so that reading past the cap fails with
// http.MaxBytesError, which BindError reports as request_too_large.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	tooLarge := fmt.Sprintf("Request body exceeds %d bytes", maxBytes)
	return func(c *gin.Context) {
		switch {
		case c.Request.Body == nil || c.Request.Body == http.NoBody:
		case c.Request.ContentLength > maxBytes:
			abortWithCode(c, http.StatusRequestEntityTooLarge, dto.CodeRequestTooLarge, tooLarge)
			return
		default:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
