package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrContext is matched by ContextError.
var ErrContext = errors.New("invalid context")

// ErrProtocol is matched by ProtocolError.
var ErrProtocol = errors.New("protocol error")

// ErrCanceled is matched by CanceledError.
var ErrCanceled = errors.New("canceled")

// ErrTimeout is matched by TimeoutError.
var ErrTimeout = errors.New("timed out")

// ErrSuperseded is matched by SupersededError.
var ErrSuperseded = errors.New("superseded")

// ErrPopupClosed is used when the wallet window was closed before it
// reported a result.
var ErrPopupClosed = errors.New("Closed")

// ErrMissingSession is used when no session has been stored yet.
var ErrMissingSession = errors.New("no session found")

// ContextError indicates the caller supplied no usable chain or prompt
// service.
type ContextError struct {
	Reason string
}

// Error returns the reason.
func (e ContextError) Error() string { return e.Reason }

// Is matches ErrContext.
func (e ContextError) Is(target error) bool { return target == ErrContext }

// ProtocolError indicates a malformed or incomplete response from the wallet.
// The underlying transport error, if any, is wrapped.
type ProtocolError struct {
	Reason string
	Err    error
}

// Error returns the reason.
func (e ProtocolError) Error() string {
	if e.Reason == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

// Is matches ErrProtocol.
func (e ProtocolError) Is(target error) bool { return target == ErrProtocol }

// Unwrap returns the boxed error.
func (e ProtocolError) Unwrap() error { return e.Err }

// CanceledError indicates the user dismissed the prompt.
type CanceledError struct {
	Reason string
	Err    error
}

// Error returns the reason.
func (e CanceledError) Error() string {
	if e.Reason == "" {
		return ErrCanceled.Error()
	}
	return e.Reason
}

// Is matches ErrCanceled.
func (e CanceledError) Is(target error) bool { return target == ErrCanceled }

// Unwrap returns the boxed error.
func (e CanceledError) Unwrap() error { return e.Err }

// TimeoutError indicates the deadline of an operation elapsed.
type TimeoutError struct {
	Reason string
}

// Error returns the reason.
func (e TimeoutError) Error() string { return e.Reason }

// Is matches ErrTimeout.
func (e TimeoutError) Is(target error) bool { return target == ErrTimeout }

// SupersededError indicates a newer attempt took over the wallet window.
type SupersededError struct {
	Reason string
}

// Error returns the reason.
func (e SupersededError) Error() string { return e.Reason }

// Is matches ErrSuperseded.
func (e SupersededError) Is(target error) bool { return target == ErrSuperseded }

// WalletError is an error reported by the wallet itself, with its message
// already normalized by ErrorMessage.
type WalletError struct {
	Message string
}

// Error returns the wallet's message.
func (e WalletError) Error() string { return e.Message }

type errorDetail struct {
	Message string `json:"message"`
}

type walletError struct {
	JSON *struct {
		Error json.RawMessage `json:"error"`
	} `json:"json"`
	Error   json.RawMessage `json:"error"`
	Name    string          `json:"name"`
	What    string          `json:"what"`
	Message string          `json:"message"`
	Details []errorDetail   `json:"details"`
}

const assertPrefix = "assertion failure with message: "

// ErrorMessage turns an error payload reported by the wallet or the chain
// into a human readable message. Assertion failures are unwrapped to their
// message, detail lists are joined by newlines, and anything else falls back
// to what, message, or the raw payload.
func ErrorMessage(raw json.RawMessage) string {
	var we walletError
	if err := json.Unmarshal(raw, &we); err != nil {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return strings.TrimSpace(string(raw))
	}
	if we.JSON != nil && len(we.JSON.Error) > 0 {
		return ErrorMessage(we.JSON.Error)
	}
	if len(we.Error) > 0 && string(we.Error) != "null" {
		return ErrorMessage(we.Error)
	}
	if we.Details != nil {
		switch {
		case we.Name == "eosio_assert_message_exception" && len(we.Details) > 0:
			return strings.Replace(we.Details[0].Message, assertPrefix, "", 1)
		case len(we.Details) > 0:
			msgs := make([]string, 0, len(we.Details))
			for _, d := range we.Details {
				msgs = append(msgs, d.Message)
			}
			return strings.Join(msgs, "\n")
		case we.What != "":
			return we.What
		}
		return strings.TrimSpace(string(raw))
	}
	if we.Message != "" {
		return we.Message
	}
	return strings.TrimSpace(string(raw))
}

// NewWalletError builds a WalletError from a raw error payload.
func NewWalletError(raw json.RawMessage) error {
	return WalletError{Message: ErrorMessage(raw)}
}

// Errorf is a shorthand for a ProtocolError with a formatted reason.
func Errorf(format string, args ...interface{}) error {
	return ProtocolError{Reason: fmt.Sprintf(format, args...)}
}
