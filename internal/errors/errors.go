package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrNotFound     ErrorType = "NOT_FOUND"
	ErrRateLimit    ErrorType = "RATE_LIMIT"
	ErrInvalidInput ErrorType = "INVALID_INPUT"
	ErrInternal     ErrorType = "INTERNAL"
	ErrUnauthorized ErrorType = "UNAUTHORIZED"
	ErrPrecondition ErrorType = "PRECONDITION"
	ErrConflict     ErrorType = "CONFLICT"
)

// AppError represents an application error
type AppError struct {
	Type      ErrorType
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:      errType,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrNotFound)
}

// IsRateLimit checks if the error is a rate limit error of either form
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	return isType(err, ErrRateLimit)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return isType(err, ErrInvalidInput)
}

// IsUnauthorized checks if the error is an authentication error
func IsUnauthorized(err error) bool {
	return isType(err, ErrUnauthorized)
}

// IsPrecondition checks if the error is a precondition failure
func IsPrecondition(err error) bool {
	return isType(err, ErrPrecondition)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return New(ErrNotFound, message, err)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return New(ErrInvalidInput, message, err)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, err error) *AppError {
	return New(ErrUnauthorized, message, err)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return New(ErrInternal, message, err)
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(message string) *AppError {
	return New(ErrPrecondition, message, nil)
}

// RateLimitError is returned when an external API refuses a call for quota reasons
type RateLimitError struct {
	ResetTime  time.Time
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded, retry after %v", e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded, resets at %v (limit: %d, remaining: %d)",
		e.ResetTime, e.Limit, e.Remaining)
}

// RetryDelay returns the server suggested delay, if one was given
func (e *RateLimitError) RetryDelay() (time.Duration, bool) {
	if e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// NewRateLimitError creates a new RateLimitError
func NewRateLimitError(resetTime time.Time, limit, remaining int) *RateLimitError {
	return &RateLimitError{
		ResetTime: resetTime,
		Limit:     limit,
		Remaining: remaining,
	}
}

// Stage names the part of a snapshot run that failed
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageClassify  Stage = "classify"
	StageDetect    Stage = "detect"
	StageAggregate Stage = "aggregate"
	StagePersist   Stage = "persist"
)

// RunError aborts a whole snapshot run. Nothing computed by the run may be published.
type RunError struct {
	Stage  Stage
	Owner  string
	Repo   string
	Window string
	Cause  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("metrics run for %s/%s %s failed at %s: %v", e.Owner, e.Repo, e.Window, e.Stage, e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// NewRunError creates a new RunError
func NewRunError(stage Stage, owner, repo, window string, cause error) *RunError {
	return &RunError{
		Stage:  stage,
		Owner:  owner,
		Repo:   repo,
		Window: window,
		Cause:  cause,
	}
}

// RunInProgressError represents an error when a run is already active for a repository
type RunInProgressError struct {
	Repository string
}

func (e *RunInProgressError) Error() string {
	return fmt.Sprintf("metrics run already in progress for repository: %s", e.Repository)
}

// NewRunInProgressError creates a new RunInProgressError
func NewRunInProgressError(repository string) error {
	return &RunInProgressError{
		Repository: repository,
	}
}

// IsRunInProgress checks if the error is a RunInProgressError
func IsRunInProgress(err error) bool {
	var e *RunInProgressError
	return errors.As(err, &e)
}
