// Package agenterr defines the agent-wide error taxonomy.
//
// Every error the supervisor and its workers produce is tagged with a Kind
// so call sites that need to branch on error category (the FSM's invalid
// transitions, the credential manager's fatal-vs-retryable split) can do so
// without string matching.
package agenterr

import (
	"errors"
	"fmt"
)

// Kind tags an Error with its broad category.
type Kind string

const (
	KindIO                 Kind = "io"
	KindSerialization      Kind = "serialization"
	KindHTTP               Kind = "http"
	KindAuth               Kind = "auth"
	KindToken              Kind = "token"
	KindStorage            Kind = "storage"
	KindSync               Kind = "sync"
	KindDeploy             Kind = "deploy"
	KindRelay              Kind = "relay"
	KindServer             Kind = "server"
	KindShutdown           Kind = "shutdown"
	KindDeviceNotActivated Kind = "device_not_activated"
	KindConfig             Kind = "config"
	KindHardware           Kind = "hardware"
	KindWorkflow           Kind = "workflow"
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal"
)

// Error is the concrete error type produced by agent components.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New builds an Error of the given kind wrapping err (which may be nil).
func New(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == k
	}
	return false
}
