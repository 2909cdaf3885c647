package feedback

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorInvalidSentiment ErrorCode = "INVALID_SENTIMENT"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

// ValidationError reports a rejected submission. Reason is safe to show to
// the caller.
type ValidationError struct {
	Code   ErrorCode
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("feedback: %s (%s)", e.Code, e.Reason)
}

func invalid(code ErrorCode, reason string) *ValidationError {
	return &ValidationError{Code: code, Reason: reason}
}
