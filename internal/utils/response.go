// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"cyton-service/internal/cyton"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}
	if err != nil {
		apiError.Details = err.Error()
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// BoardErrorResponse picks the status code from a board command error
func BoardErrorResponse(c *gin.Context, message string, err error) {
	ErrorResponse(c, StatusForError(err), message, err)
}

// StatusForError maps board sentinel errors onto HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, cyton.ErrInvalidChannel), errors.Is(err, cyton.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, cyton.ErrNotConnected),
		errors.Is(err, cyton.ErrNotStreaming),
		errors.Is(err, cyton.ErrAlreadyStreaming),
		errors.Is(err, cyton.ErrAlreadyConnected),
		errors.Is(err, cyton.ErrStreaming),
		errors.Is(err, cyton.ErrImpedanceActive),
		errors.Is(err, cyton.ErrNotContinuous),
		errors.Is(err, cyton.ErrFirmwareV1):
		return http.StatusConflict
	case errors.Is(err, cyton.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, cyton.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, cyton.ErrDeviceFailure), errors.Is(err, cyton.ErrImpedanceCancelled):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errs map[string]string) {
	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Message: "Validation failed",
		Error: &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
		},
		Data:      gin.H{"validation_errors": errs},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// BindErrorResponse reports a request body that failed to bind. Field
// validation failures are listed per field; anything else is a plain 400.
func BindErrorResponse(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	ValidationErrorResponse(c, fields)
}

func getRequestID(c *gin.Context) string {
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusBadGateway:
		return "DEVICE_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEVICE_TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}
