package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/open-builders/premium-backend/internal/common/errors"
)

const (
	RequestIDKey = "request_id"
	UserIDKey    = "user_id"

	statusOverrideKey = "error_status"
)

// ErrorHandler recovers panics and renders them as INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := getRequestID(c)

		log.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		sendErrorResponse(c, appErr)
	})
}

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// HandleError renders err and aborts the request. Errors that are not
// AppErrors are reported as INTERNAL_ERROR without leaking their text.
func HandleError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "Internal server error")
	}
	sendErrorResponse(c, appErr)
}

// HandleErrorWithStatus renders err like HandleError but with a fixed status.
func HandleErrorWithStatus(c *gin.Context, err error, status int) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "Internal server error")
	}
	c.Set(statusOverrideKey, status)
	sendErrorResponse(c, appErr)
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError) {
	requestID := getRequestID(c)

	appErr.WithRequestID(requestID).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)
	if uid := getUserID(c); uid != 0 && appErr.UserID == 0 {
		appErr.WithUserID(uid)
	}

	statusCode := HTTPStatus(appErr.Code)
	if v, ok := c.Get(statusOverrideKey); ok {
		statusCode = v.(int)
	}
	if appErr.Code == errors.ErrCodeRateLimit {
		if ra, ok := appErr.Details["retry_after"].(string); ok {
			if d, err := time.ParseDuration(ra); err == nil {
				c.Header("Retry-After", fmt.Sprintf("%d", int(d.Seconds()+0.999)))
			}
		}
	}

	logError(appErr, c)

	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeUnknownUser, errors.ErrCodeClaimNotFound, errors.ErrCodeNotQueued:
		return http.StatusNotFound
	case errors.ErrCodeClaimNotPending, errors.ErrCodeAlreadyQueued:
		return http.StatusConflict
	case errors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrCodeTelegramAPI:
		return http.StatusBadGateway
	case errors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logError(appErr *errors.AppError, c *gin.Context) {
	var ev *zerolog.Event
	switch {
	case appErr.IsInternal():
		ev = log.Error()
	case appErr.IsUnauthorized():
		ev = log.Warn()
	default:
		ev = log.Info()
	}

	ev = ev.Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)
	if appErr.UserID != 0 {
		ev = ev.Int64("user_id", appErr.UserID)
	}
	if len(appErr.Details) > 0 {
		ev = ev.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		ev = ev.AnErr("cause", appErr.Cause)
	}
	ev.Msg("Request failed")
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}

func getUserID(c *gin.Context) int64 {
	if userID, exists := c.Get(UserIDKey); exists {
		if id, ok := userID.(int64); ok {
			return id
		}
	}
	return 0
}
