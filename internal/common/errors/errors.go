package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of application failure.
type ErrorCode string

const (
	// Generic
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Users and entitlements
	ErrCodeUnknownUser ErrorCode = "UNKNOWN_USER"

	// Verification claims
	ErrCodeClaimNotFound   ErrorCode = "CLAIM_NOT_FOUND"
	ErrCodeClaimNotPending ErrorCode = "CLAIM_NOT_PENDING"

	// Premium queue
	ErrCodeAlreadyQueued ErrorCode = "ALREADY_QUEUED"
	ErrCodeNotQueued     ErrorCode = "NOT_QUEUED"

	// Infrastructure
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeTelegramAPI      ErrorCode = "TELEGRAM_API_ERROR"
)

// Sentinels usable with errors.Is; matching is by code.
var (
	ErrUnknownUser      = &AppError{Code: ErrCodeUnknownUser, Message: "unknown user"}
	ErrClaimNotFound    = &AppError{Code: ErrCodeClaimNotFound, Message: "claim not found"}
	ErrClaimNotPending  = &AppError{Code: ErrCodeClaimNotPending, Message: "claim already decided"}
	ErrAlreadyQueued    = &AppError{Code: ErrCodeAlreadyQueued, Message: "user already queued"}
	ErrNotQueued        = &AppError{Code: ErrCodeNotQueued, Message: "user not queued"}
	ErrInvalidInput     = &AppError{Code: ErrCodeInvalidInput, Message: "invalid input"}
	ErrStoreUnavailable = &AppError{Code: ErrCodeStoreUnavailable, Message: "store unavailable"}
	ErrUnauthorized     = &AppError{Code: ErrCodeUnauthorized, Message: "unauthorized"}
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsNotFound reports whether the error denotes a missing resource.
func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeUnknownUser ||
		e.Code == ErrCodeClaimNotFound ||
		e.Code == ErrCodeNotQueued
}

// IsValidation reports whether the error was caused by caller input.
func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeInvalidInput
}

// IsUnauthorized reports whether the error is an authorization failure.
func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeUnauthorized
}

// IsInternal reports whether the error is an infrastructure failure.
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeStoreUnavailable ||
		e.Code == ErrCodeTelegramAPI
}

// WithContext adds request context to the error.
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds a detail entry rendered to the caller.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap wraps an existing error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// NewInvalidInputError reports a rejected field.
func NewInvalidInputError(field, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewUnknownUserError reports an unregistered telegram id.
func NewUnknownUserError(userID int64) *AppError {
	return New(ErrCodeUnknownUser, fmt.Sprintf("user %d is not registered", userID)).
		WithDetail("telegram_id", userID)
}

func NewClaimNotFoundError(claimID int64) *AppError {
	return New(ErrCodeClaimNotFound, fmt.Sprintf("claim %d not found", claimID)).
		WithDetail("claim_id", claimID)
}

func NewClaimNotPendingError(claimID int64, status string) *AppError {
	return New(ErrCodeClaimNotPending, fmt.Sprintf("claim %d already %s", claimID, status)).
		WithDetail("claim_id", claimID).
		WithDetail("status", status)
}

func NewNotQueuedError(userID int64) *AppError {
	return New(ErrCodeNotQueued, fmt.Sprintf("user %d has no outstanding queue entry", userID)).
		WithDetail("telegram_id", userID)
}

// NewStoreError wraps a database failure or timeout.
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreUnavailable, fmt.Sprintf("store operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, "unauthorized").
		WithDetail("reason", reason)
}

func NewTelegramAPIError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTelegramAPI, fmt.Sprintf("telegram API operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewRateLimitError(service string, retryAfter time.Duration) *AppError {
	return New(ErrCodeRateLimit, fmt.Sprintf("rate limit exceeded for %s", service)).
		WithDetail("service", service).
		WithDetail("retry_after", retryAfter.String())
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
