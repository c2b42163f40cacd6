// Package pipeerr defines the error kinds the pipeline must distinguish
// when deciding how a broker delivery should be acknowledged.
package pipeerr

import "fmt"

// Kind labels one of the error categories the pipeline reacts to differently.
type Kind string

const (
	// Transient covers HTTP/broker/DB network failures. The message is
	// not acked; the broker will redeliver.
	Transient Kind = "transient_fetch"
	// Malformed covers unparseable JSON payloads or missing required
	// fields. The message is acked to avoid poison-message storms.
	Malformed Kind = "malformed_input"
	// ModelOutput covers a scoring/writing model returning non-JSON or
	// missing fields. The single (post, user) pair is dropped; never retried.
	ModelOutput Kind = "model_output"
	// NotFound covers a user/feed absent during an update. Treated as
	// success: the message is acked.
	NotFound Kind = "not_found"
	// Fatal covers missing configuration at startup. The process refuses to start.
	Fatal Kind = "fatal"
)

// Error wraps an underlying error with the Kind the dispatcher should act on.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Transientf builds a Transient error from a format string.
func Transientf(format string, args ...interface{}) error {
	return &Error{Kind: Transient, Err: fmt.Errorf(format, args...)}
}

// Malformedf builds a Malformed error from a format string.
func Malformedf(format string, args ...interface{}) error {
	return &Error{Kind: Malformed, Err: fmt.Errorf(format, args...)}
}

// ModelOutputf builds a ModelOutput error from a format string.
func ModelOutputf(format string, args ...interface{}) error {
	return &Error{Kind: ModelOutput, Err: fmt.Errorf(format, args...)}
}

// NotFoundf builds a NotFound error from a format string.
func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: NotFound, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to Transient for unclassified
// errors so that an unexpected failure is retried rather than silently dropped.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if asPipeErr(err, &pe) {
		return pe.Kind
	}
	return Transient
}

func asPipeErr(err error, target **Error) bool {
	for err != nil {
		if pe, ok := err.(*Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
