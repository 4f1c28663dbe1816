package middleware

import (
	"errors"
	"net/http"
	"time"

	"order-access-service/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails contains the error information
type ErrorDetails struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	TraceID   string                 `json:"trace_id"`
}

// Error codes outside the domain kinds
const (
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
)

// ErrUnauthorized is returned when no acting user can be identified
var ErrUnauthorized = errors.New("missing or invalid user identity")

// ErrorHandler renders the last error attached to the context
func ErrorHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		handleError(c, c.Errors.Last().Err, logger)
	}
}

// Abort attaches err and stops the handler chain. ErrorHandler renders it.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func handleError(c *gin.Context, err error, logger *logrus.Logger) {
	var details ErrorDetails
	var statusCode int

	var appErr *apperrors.Error
	switch {
	case errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal:
		statusCode = apperrors.HTTPStatus(appErr.Kind)
		details = ErrorDetails{
			Code:    string(appErr.Kind),
			Message: appErr.Message,
			Details: appErr.Details,
		}
	case errors.Is(err, ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		details = ErrorDetails{Code: ErrCodeUnauthorized, Message: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		details = ErrorDetails{
			Code:    ErrCodeInternalServer,
			Message: "An unexpected error occurred",
		}
	}

	details = writeError(c, details, statusCode)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"trace_id": details.TraceID,
		"code":     details.Code,
		"path":     c.Request.URL.Path,
		"method":   c.Request.Method,
	})
	if statusCode >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}
}

func writeError(c *gin.Context, details ErrorDetails, statusCode int) ErrorDetails {
	traceID := c.GetString("trace_id")
	if traceID == "" {
		traceID = uuid.New().String()
	}
	details.TraceID = traceID
	details.Timestamp = time.Now().UTC()

	c.AbortWithStatusJSON(statusCode, ErrorResponse{Error: details})
	return details
}
