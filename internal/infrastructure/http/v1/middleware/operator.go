package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "millstock/internal/core/context"
)

const (
	HeaderOperatorID   = "X-Operator-ID"
	HeaderOperatorName = "X-Operator-Name"
)

// Operator attaches the caller identity from request headers.
// Authentication happens in front of the server; the headers are recorded
// as given on every mutation.
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		op := appctx.Operator{
			ID:   strings.TrimSpace(c.GetHeader(HeaderOperatorID)),
			Name: strings.TrimSpace(c.GetHeader(HeaderOperatorName)),
		}
		if op.ID != "" || op.Name != "" {
			ctx := appctx.WithOperator(c.Request.Context(), op)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
