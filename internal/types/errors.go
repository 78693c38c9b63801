// README: Error kinds shared by the domain modules and mapped to transport codes by the HTTP layer.
package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
)

// Error carries a user-facing message and unwraps to one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func NotFound(msg string) error     { return &Error{Kind: ErrNotFound, Msg: msg} }
func InvalidState(msg string) error { return &Error{Kind: ErrInvalidState, Msg: msg} }
func Conflict(msg string) error     { return &Error{Kind: ErrConflict, Msg: msg} }
func Validation(msg string) error   { return &Error{Kind: ErrValidation, Msg: msg} }

// TransitionError reports a rejected status change and the statuses reachable from From.
type TransitionError struct {
	From    string
	To      string
	Allowed []string
}

func (e *TransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("invalid status transition from %s to %s, allowed: %s", e.From, e.To, allowed)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationErrors lists every failed eligibility check.
type ValidationErrors struct {
	Msg      string
	Problems []string
}

func (e *ValidationErrors) Error() string {
	return e.Msg + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationErrors) Unwrap() error { return ErrValidation }
