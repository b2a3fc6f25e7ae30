package model

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the messaging core.
type Kind string

const (
	KindNotAuthenticated Kind = "not_authenticated"
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindBackend          Kind = "backend"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated, Msg: "not authenticated"}
	ErrValidation       = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrNotFound         = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrBackend          = &Error{Kind: KindBackend, Msg: "backend failure"}
)

// Error is a classified failure. Err, when set, is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of op or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NotAuthenticated reports a missing caller identity for op.
func NotAuthenticated(op string) error {
	return &Error{Kind: KindNotAuthenticated, Op: op, Msg: "no signed-in user"}
}

// Validation reports invalid input for op.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// NotFound reports a missing entity for op.
func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found"}
}

// Backend wraps a transport or store failure for op.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: KindBackend, Op: op, Msg: "backend failure", Err: err}
}

// KindOf returns the kind of err, or KindBackend for unclassified errors.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindBackend
}
