package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/infrastructure/http/v1/dto"
	"millstock/pkg/logger"
)

// ErrorHandler renders the last error attached to the context as a
// dto.ErrorResponse. Domain errors keep their code and details; anything
// else becomes INTERNAL_ERROR with only the request id exposed.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		err := c.Errors.Last().Err

		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code == apperror.CodeInternal {
			logger.Error(ctx, "request failed",
				"error", err,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"operator", appctx.OperatorName(ctx),
			)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Code:    apperror.CodeInternal,
				Message: "Internal server error",
				Details: map[string]any{"request_id": c.GetString(keyRequestID)},
			})
			return
		}

		if appErr.Err != nil {
			logger.Warn(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		c.JSON(status, dto.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
	}
}
