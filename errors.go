package safedbx

import (
	"errors"
	"fmt"

	"github.com/Giulio2002/safedbx/engine"
)

// Kind is the closed classification of safedbx errors. Every engine status
// maps onto exactly one kind; statuses with no dedicated kind surface as
// KindCustom with the raw code preserved.
type Kind int

const (
	// KindNotFound indicates the key/value pair was not found.
	KindNotFound Kind = iota + 1

	// KindKeyExists indicates the key/value pair already exists.
	KindKeyExists

	// KindTxnFull indicates the transaction holds too many dirty pages.
	KindTxnFull

	// KindCursorFull indicates a cursor stack overflow in the engine.
	KindCursorFull

	// KindPageFull indicates an internal engine page had no room.
	KindPageFull

	// KindCorrupted indicates the data file is corrupted.
	KindCorrupted

	// KindPanic indicates the engine hit a fatal inconsistency and the
	// environment needs recovery before further use.
	KindPanic

	// KindInvalidPath indicates the environment path does not match what
	// the flags require (file vs directory) and could not be created.
	KindInvalidPath

	// KindState indicates an operation attempted from the wrong local
	// state. State errors are raised before any engine call is made.
	KindState

	// KindCustom carries an engine status with no dedicated kind.
	KindCustom
)

var kindText = map[Kind]string{
	KindNotFound:    "not found",
	KindKeyExists:   "key exists",
	KindTxnFull:     "transaction full",
	KindCursorFull:  "cursor full",
	KindPageFull:    "page full",
	KindCorrupted:   "corrupted",
	KindPanic:       "engine panic",
	KindInvalidPath: "invalid path for environment",
	KindState:       "state error",
	KindCustom:      "engine error",
}

// Error is a safedbx error. Code holds the raw engine status when the error
// originated in the engine, and zero for errors raised locally.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error // wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("safedbx: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("safedbx: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind with its default message.
func NewError(kind Kind) *Error {
	return &Error{Kind: kind, Message: kindText[kind]}
}

// WrapError creates an Error of the given kind wrapping a cause.
func WrapError(kind Kind, err error) *Error {
	e := NewError(kind)
	e.Err = err
	return e
}

// stateErrorf builds a KindState error. The message names the operation and
// the states involved, in the shape "commit requires Normal, is in Invalid".
func stateErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

// mapEngineError lifts an engine status into the closed taxonomy. Statuses
// without a dedicated kind become KindCustom with the code preserved, so no
// engine information is lost to classification.
func mapEngineError(err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	var code engine.Errno
	if !errors.As(err, &code) {
		return &Error{Kind: KindCustom, Message: err.Error(), Err: err}
	}
	kind := KindCustom
	switch code {
	case engine.ErrNotFound:
		kind = KindNotFound
	case engine.ErrKeyExist:
		kind = KindKeyExists
	case engine.ErrTxnFull:
		kind = KindTxnFull
	case engine.ErrCursorFull:
		kind = KindCursorFull
	case engine.ErrPageFull:
		kind = KindPageFull
	case engine.ErrCorrupted, engine.ErrPageNotFound:
		kind = KindCorrupted
	case engine.ErrPanic:
		kind = KindPanic
	}
	return &Error{Kind: kind, Code: int(code), Message: code.Error(), Err: err}
}

// KindOf returns the kind of err, or zero if err is not a safedbx error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound returns true if err indicates a missing key/value pair.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsKeyExists returns true if err indicates an already present pair.
func IsKeyExists(err error) bool {
	return KindOf(err) == KindKeyExists
}

// IsStateError returns true if err was raised by a local state guard
// without reaching the engine.
func IsStateError(err error) bool {
	return KindOf(err) == KindState
}

// IsCorrupted returns true if err indicates data file corruption.
func IsCorrupted(err error) bool {
	return KindOf(err) == KindCorrupted
}

// IsInvalidPath returns true if err indicates a path/flags mismatch.
func IsInvalidPath(err error) bool {
	return KindOf(err) == KindInvalidPath
}
