package generator

import (
	"errors"
	"fmt"
)

// Kind classifies generation failures so the orchestrator can decide how much
// provider detail to surface to the user.
type Kind string

const (
	// KindRejected means the provider refused the inputs (content policy,
	// unusable image). The provider's own message is safe to show users.
	KindRejected Kind = "rejected"
	// KindTransport covers network failures and non-2xx responses.
	KindTransport Kind = "transport"
	// KindProtocol means the provider answered 2xx but the payload was not
	// in the documented shape.
	KindProtocol Kind = "protocol"
	// KindTimeout means polling gave up after the maximum attempts.
	KindTimeout Kind = "timeout"
)

// Error is the failure type returned by all generators.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, provider, message string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: err}
}

func rejectedErr(provider, message string) *Error {
	return newError(KindRejected, provider, message, nil)
}

func transportErr(provider, message string, err error) *Error {
	return newError(KindTransport, provider, message, err)
}

func protocolErr(provider, message string, err error) *Error {
	return newError(KindProtocol, provider, message, err)
}

func timeoutErr(provider, message string) *Error {
	return newError(KindTimeout, provider, message, nil)
}

func kindOf(err error) (Kind, bool) {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind, true
	}
	return "", false
}

// IsRejection reports whether err is a provider rejection.
func IsRejection(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindRejected
}

// IsTimeout reports whether err is a polling timeout.
func IsTimeout(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindTimeout
}

// Message returns the provider-facing message of a typed error, or err.Error()
// for anything else.
func Message(err error) string {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
