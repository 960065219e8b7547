package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message. It's a wrapper around the
// standard library so that callers only need to import this package.
func New(msg string, args ...interface{}) error {
	if len(args) == 0 {
		return goErrors.New(msg)
	}
	return fmt.Errorf(msg, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goErrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goErrors.As(err, target)
}

// contextError annotates an error with a short description of what was
// happening when the error occurred. The resulting message reads like a
// stack: "copy: build archive: open: permission denied".
type contextError struct {
	err     error
	context string
}

// WithContext wraps `err` with `context`. A nil error stays nil so that
// callers can wrap unconditionally.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{err: err, context: context}
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// RootCause returns the innermost error wrapped by WithContext.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// FriendlyError is an error with a message that's meant to be shown directly
// to the operator, rather than the chain of contexts.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a new FriendlyError. The message is formatted with
// fmt.Sprintf.
func NewFriendlyError(msg string, args ...interface{}) error {
	return FriendlyError{fmt.Sprintf(msg, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message that should be shown to the operator.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// GetPrintableMessage returns the most helpful message to show for the
// error. Friendly errors anywhere in the chain take precedence over the full
// context chain.
func GetPrintableMessage(err error) string {
	var friendly interface{ FriendlyMessage() string }
	if goErrors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
