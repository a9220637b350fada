package usecase

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"gptalk/internal/domain"
)

// FailureKind tags a failed completion attempt.
type FailureKind int

const (
	FailureTransient   FailureKind = iota // 5xx, network, timeouts, unrecognized errors
	FailureRateLimited                    // 429 / throttling
	FailureFatal                          // bad credentials, malformed request
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// ClassifiedError holds the result of error classification.
type ClassifiedError struct {
	Original   error
	Kind       FailureKind
	Sentinel   error // mapped domain sentinel, or nil
	StatusCode int   // extracted HTTP status, or 0 if unknown
}

// ErrorClassifier maps LLM provider errors onto failure kinds.
type ErrorClassifier struct{}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// statusPattern matches "status code: NNN" and "API error NNN:" forms left in
// provider error strings.
var statusPattern = regexp.MustCompile(`(?:status code:? |API error )(\d{3})`)

// Classify inspects err and returns its failure kind. A nil error classifies
// as a zero ClassifiedError.
func (c *ErrorClassifier) Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	if ce, ok := c.classifyBySentinel(err); ok {
		return ce
	}

	errStr := err.Error()
	if m := statusPattern.FindStringSubmatch(errStr); len(m) == 2 {
		code, _ := strconv.Atoi(m[1])
		return c.classifyByStatus(err, code)
	}
	return c.classifyByString(err, errStr)
}

func (c *ErrorClassifier) classifyBySentinel(err error) (ClassifiedError, bool) {
	switch {
	case errors.Is(err, domain.ErrRateLimit):
		return ClassifiedError{Original: err, Kind: FailureRateLimited, Sentinel: domain.ErrRateLimit}, true
	case errors.Is(err, domain.ErrAuthInvalid):
		return ClassifiedError{Original: err, Kind: FailureFatal, Sentinel: domain.ErrAuthInvalid}, true
	case errors.Is(err, domain.ErrContextOverflow):
		return ClassifiedError{Original: err, Kind: FailureFatal, Sentinel: domain.ErrContextOverflow}, true
	case errors.Is(err, domain.ErrInvalidInput):
		return ClassifiedError{Original: err, Kind: FailureFatal, Sentinel: domain.ErrInvalidInput}, true
	case errors.Is(err, domain.ErrEmptyCompletion):
		return ClassifiedError{Original: err, Kind: FailureTransient, Sentinel: domain.ErrEmptyCompletion}, true
	case errors.Is(err, context.DeadlineExceeded):
		return ClassifiedError{Original: err, Kind: FailureTransient}, true
	case errors.Is(err, domain.ErrProviderError):
		return ClassifiedError{Original: err, Kind: FailureTransient, Sentinel: domain.ErrProviderError}, true
	}
	return ClassifiedError{}, false
}

func (c *ErrorClassifier) classifyByStatus(err error, code int) ClassifiedError {
	switch {
	case code == 429:
		return ClassifiedError{Original: err, Kind: FailureRateLimited, Sentinel: domain.ErrRateLimit, StatusCode: code}
	case code == 401 || code == 403:
		return ClassifiedError{Original: err, Kind: FailureFatal, Sentinel: domain.ErrAuthInvalid, StatusCode: code}
	case code == 413:
		return ClassifiedError{Original: err, Kind: FailureFatal, Sentinel: domain.ErrContextOverflow, StatusCode: code}
	case code == 408 || code >= 500:
		return ClassifiedError{Original: err, Kind: FailureTransient, StatusCode: code}
	case code >= 400:
		return ClassifiedError{Original: err, Kind: FailureFatal, StatusCode: code}
	default:
		return ClassifiedError{Original: err, Kind: FailureTransient, StatusCode: code}
	}
}

func (c *ErrorClassifier) classifyByString(err error, errStr string) ClassifiedError {
	lower := strings.ToLower(errStr)

	for _, p := range []string{"rate limit", "too many requests", "throttl"} {
		if strings.Contains(lower, p) {
			return ClassifiedError{Original: err, Kind: FailureRateLimited, Sentinel: domain.ErrRateLimit}
		}
	}
	for _, p := range []string{"invalid api key", "unauthorized", "access denied"} {
		if strings.Contains(lower, p) {
			return ClassifiedError{Original: err, Kind: FailureFatal, Sentinel: domain.ErrAuthInvalid}
		}
	}
	// Network errors and anything unrecognized stay retryable.
	return ClassifiedError{Original: err, Kind: FailureTransient}
}
