package hoperr

import (
	"errors"
	"fmt"
)

// Type classifies failures into the high-level buckets used by the client.
type Type int

const (
	// TypeTransport represents failures reported by the underlying broker
	// connection: dial errors, access denials, produce/poll failures.
	TypeTransport Type = iota
	// TypeAddress represents malformed or unsupported broker URLs.
	TypeAddress
	// TypeCredential represents credential-file and credential-selection failures.
	TypeCredential
	// TypeCodec represents message encode/decode failures.
	TypeCodec
	// TypeUsage represents invalid combinations of user-supplied options.
	TypeUsage
)

// String returns the string representation of the error type.
func (t Type) String() string {
	switch t {
	case TypeAddress:
		return "ERROR_TYPE_ADDRESS"
	case TypeCredential:
		return "ERROR_TYPE_CREDENTIAL"
	case TypeCodec:
		return "ERROR_TYPE_CODEC"
	case TypeUsage:
		return "ERROR_TYPE_USAGE"
	case TypeTransport:
		return "ERROR_TYPE_TRANSPORT"
	default:
		return "ERROR_TYPE_UNKNOWN"
	}
}

// Error is a structured error used across the client.
//
// It wraps an underlying cause while carrying a one-line advisory message
// suitable for non-debug CLI output and a classification used to pick the
// process exit code.
type Error struct {
	err     error
	msg     string
	errType Type
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.err != nil {
		return e.err.Error()
	}
	return "unknown error"
}

// Advisory returns the one-line, user-facing message.
func (e *Error) Advisory() string {
	return e.Error()
}

// Detail returns a verbose representation including the underlying cause,
// shown by the CLI only under --debug.
func (e *Error) Detail() string {
	if e.err == nil || e.err.Error() == e.msg {
		return fmt.Sprintf("%s: %s", e.errType, e.Error())
	}
	return fmt.Sprintf("%s: %s: %v", e.errType, e.Error(), e.err)
}

// Type returns the high-level error classification.
func (e *Error) Type() Type {
	return e.errType
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// ExitCode maps the error classification to a sysexits-style process exit code.
func (e *Error) ExitCode() int {
	switch e.errType {
	case TypeUsage:
		return 64 // EX_USAGE
	case TypeAddress, TypeCodec:
		return 65 // EX_DATAERR
	case TypeTransport:
		return 69 // EX_UNAVAILABLE
	case TypeCredential:
		return 77 // EX_NOPERM
	default:
		return 1
	}
}

func newError(err error, msg string, et Type) error {
	return &Error{err: err, msg: msg, errType: et}
}

// NewAddress creates an address-type error with the given advisory message.
func NewAddress(msg string, cause error) error {
	return newError(cause, msg, TypeAddress)
}

// NewCredential creates a credential-type error with the given advisory message.
func NewCredential(msg string, cause error) error {
	return newError(cause, msg, TypeCredential)
}

// NewCodec creates a codec-type error with the given advisory message.
func NewCodec(msg string, cause error) error {
	return newError(cause, msg, TypeCodec)
}

// NewTransport creates a transport-type error wrapping a broker failure.
func NewTransport(msg string, cause error) error {
	return newError(cause, msg, TypeTransport)
}

// NewUsage creates a usage-type error with the given advisory message. A nil
// cause is fine; most usage errors have nothing further to say.
func NewUsage(msg string, cause error) error {
	return newError(cause, msg, TypeUsage)
}

// TypeOf reports the classification of err, or TypeTransport when err does not
// carry one. Transport is the fallback because unclassified errors reaching
// the caller come from the broker client.
func TypeOf(err error) Type {
	var he *Error
	if errors.As(err, &he) {
		return he.Type()
	}
	return TypeTransport
}

// Advisory extracts the one-line message from err.
func Advisory(err error) string {
	var he *Error
	if errors.As(err, &he) {
		return he.Advisory()
	}
	return err.Error()
}

// Detail extracts the verbose representation from err.
func Detail(err error) string {
	var he *Error
	if errors.As(err, &he) {
		return he.Detail()
	}
	return err.Error()
}

// ExitCode extracts the process exit code for err; unclassified errors exit 1.
func ExitCode(err error) int {
	var he *Error
	if errors.As(err, &he) {
		return he.ExitCode()
	}
	return 1
}
