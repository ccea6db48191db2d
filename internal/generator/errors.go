package generator

import "fmt"

// FailureCode classifies why a run ended so the CLI can choose wording
// and exit status without string matching.
type FailureCode string

const (
	CodeConfigurationInvalid FailureCode = "configuration-invalid"
	CodeAssetUnavailable     FailureCode = "asset-unavailable"
	CodeSynthesisFailure     FailureCode = "synthesis-failure"
	CodeDecodeFailure        FailureCode = "decode-failure"
	CodeCompositionTimeout   FailureCode = "composition-timeout"
	CodeRecordingInterrupted FailureCode = "recording-interrupted"
)

// Error is a classified generation failure. The message is already
// user-presentable; Unwrap exposes the underlying cause for callers that
// inspect it.
type Error struct {
	Code  FailureCode
	cause error
	msg   string
}

func (e *Error) Error() string {
	if e.cause != nil && e.msg != "" {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("generation failed (%s)", e.Code)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func failf(code FailureCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}

func wrapf(code FailureCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, cause: cause, msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the failure code classifying err, or empty if the error
// did not come from a generation run.
func CodeOf(err error) FailureCode {
	for err != nil {
		if ge, ok := err.(*Error); ok {
			return ge.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
