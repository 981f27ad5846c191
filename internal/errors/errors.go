// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies acquisition and merge failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindDetectionFailed means no platform pattern matched. Non-fatal; the
	// caller falls back to browser capture.
	KindDetectionFailed
	// KindEndpointUnavailable covers transport failures and non-2xx replies.
	KindEndpointUnavailable
	// KindMalformedResponse means a body or entry could not be parsed.
	KindMalformedResponse
	// KindEmptyResult means the adapter succeeded with zero records.
	KindEmptyResult
	KindConfig
	KindOutput
	KindInput
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindDetectionFailed:     "detection_failed",
	KindEndpointUnavailable: "endpoint_unavailable",
	KindMalformedResponse:   "malformed_response",
	KindEmptyResult:         "empty_result",
	KindConfig:              "config",
	KindOutput:              "output",
	KindInput:               "input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrDetectionFailed     = &Error{Kind: KindDetectionFailed}
	ErrEndpointUnavailable = &Error{Kind: KindEndpointUnavailable}
	ErrMalformedResponse   = &Error{Kind: KindMalformedResponse}
	ErrEmptyResult         = &Error{Kind: KindEmptyResult}
	ErrConfig              = &Error{Kind: KindConfig}
	ErrOutput              = &Error{Kind: KindOutput}
	ErrInput               = &Error{Kind: KindInput}
)

// Error is a classified failure with the operation and source that produced it.
type Error struct {
	Kind     Kind
	Op       string
	Platform string
	URL      string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ReplaceAll(e.Kind.String(), "_", " "))
	if e.Platform != "" {
		fmt.Fprintf(&b, " [%s]", e.Platform)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " %s", e.URL)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrEmptyResult)
// works regardless of operation or URL.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error with a formatted cause.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Endpoint builds an EndpointUnavailable error for a request.
func Endpoint(op, platform, url string, status int, err error) *Error {
	return &Error{Kind: KindEndpointUnavailable, Op: op, Platform: platform, URL: url, Status: status, Err: err}
}

// Malformed builds a MalformedResponse error for a body from url.
func Malformed(op, platform, url string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Platform: platform, URL: url, Err: err}
}

// Empty builds an EmptyResult error.
func Empty(op, platform, url string) *Error {
	return &Error{Kind: KindEmptyResult, Op: op, Platform: platform, URL: url}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is and As re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Join re-exports errors.Join.
func Join(errs ...error) error { return stderrors.Join(errs...) }
