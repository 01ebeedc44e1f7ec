package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ErrorHandler renders errors attached with c.Error. A status set by the
// handler with c.Status wins; otherwise it is derived from the message.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			statusCode = determineStatusCode(err.Err)
		}

		logError(log, statusCode, err.Err, c)

		c.JSON(statusCode, ErrorResponse{
			Status:    "error",
			Error:     err.Err.Error(),
			Code:      determineErrorCode(err.Err, statusCode),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// determineStatusCode determines HTTP status code from error type
func determineStatusCode(err error) int {
	errMsg := err.Error()

	switch {
	case containsAny(errMsg, "invalid", "required", "must be", "must not"):
		return http.StatusBadRequest
	case containsAny(errMsg, "not found", "does not exist"):
		return http.StatusNotFound
	case containsAny(errMsg, "source unavailable"):
		return http.StatusBadGateway
	case containsAny(errMsg, "timeout", "timed out", "deadline exceeded"):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// determineErrorCode creates a machine-readable error code
func determineErrorCode(err error, statusCode int) string {
	errMsg := err.Error()

	switch {
	case containsAny(errMsg, "source unavailable"):
		return "SOURCE_UNAVAILABLE"
	case containsAny(errMsg, "timeout", "timed out", "deadline exceeded"):
		return "TIMEOUT"
	case containsAny(errMsg, "connection", "network"):
		return "CONNECTION_ERROR"
	}
	return determineErrorCodeFromStatus(statusCode)
}

// determineErrorCodeFromStatus creates error code from HTTP status
func determineErrorCodeFromStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusBadGateway:
		return "UPSTREAM_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "TIMEOUT"
	case http.StatusInternalServerError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// logError logs errors with appropriate level
func logError(log logger.Logger, statusCode int, err error, c *gin.Context) {
	fields := []interface{}{
		"status", statusCode,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"client_ip", c.ClientIP(),
		"error", err.Error(),
	}
	if requestID := c.GetString(RequestIDKey); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if statusCode >= 500 {
		log.Error("HTTP Error", fields...)
	} else {
		log.Warn("HTTP Error", fields...)
	}
}

// containsAny reports whether s contains any of the substrings, ignoring case
func containsAny(s string, substrings ...string) bool {
	s = strings.ToLower(s)
	for _, substr := range substrings {
		if strings.Contains(s, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}
