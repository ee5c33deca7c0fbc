// internal/middleware/recovery_middleware.go
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyton-service/internal/utils"
)

// RecoveryMiddleware turns a handler panic into a JSON error response. A panic
// carrying a board error answers with that error's status; a client that has
// already hung up gets no response at all.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := panicError(recovered)
		log := utils.LoggerWithRequestID(logger, c.GetString("request_id")).With(
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)

		if clientGone(err) {
			log.Warn("Client connection lost", zap.Error(err))
			c.Abort()
			return
		}

		status := utils.StatusForError(err)
		log.Error("Panic recovered",
			zap.Error(err),
			zap.Int("status_code", status),
			zap.Stack("stacktrace"),
		)

		// only board errors are safe to echo back
		var details error
		if status != http.StatusInternalServerError {
			details = err
		}
		utils.ErrorResponse(c, status, "Request aborted", details)
		c.Abort()
	})
}

func panicError(recovered interface{}) error {
	if err, ok := recovered.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", recovered)
}

func clientGone(err error) bool {
	return errors.Is(err, http.ErrAbortHandler) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
