package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrInvalidInput   = fmt.Errorf("invalid input")
	ErrConfigLoad     = fmt.Errorf("failed to load configuration")
	ErrMissingChannel = fmt.Errorf("event has no channel")
	ErrHistoryFetch   = fmt.Errorf("thread history fetch failed")
	ErrReplyPost      = fmt.Errorf("reply post failed")

	// Upstream LLM errors.
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrProviderError   = fmt.Errorf("provider error")
	ErrEmptyCompletion = fmt.Errorf("completion returned no content")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "ContextBuilder.Build")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs and alerting.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
	CodeMissingChannel  ErrorCode = "MISSING_CHANNEL"
	CodeHistoryFetch    ErrorCode = "HISTORY_FETCH"
	CodeReplyPost       ErrorCode = "REPLY_POST"
	CodeRateLimit       ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid     ErrorCode = "AUTH_INVALID"
	CodeContextOverflow ErrorCode = "CONTEXT_OVERFLOW"
	CodeProviderError   ErrorCode = "PROVIDER_ERROR"
	CodeEmptyCompletion ErrorCode = "EMPTY_COMPLETION"
)

// errorCodes is ordered so that the most specific sentinel wins when an
// error wraps several of them.
var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrContextOverflow, CodeContextOverflow},
	{ErrEmptyCompletion, CodeEmptyCompletion},
	{ErrProviderError, CodeProviderError},
	{ErrMissingChannel, CodeMissingChannel},
	{ErrHistoryFetch, CodeHistoryFetch},
	{ErrReplyPost, CodeReplyPost},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrInvalidInput, CodeInvalidInput},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}
