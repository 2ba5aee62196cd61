package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// NewIndexOutOfRangeError is used when an index does not address an element of a
// sequence of the given length.
func NewIndexOutOfRangeError(what string, idx, length int) error {
	return errors.Errorf("%s index %d out of range [0, %d)", what, idx, length)
}

// NewPreconditionError is used when an operation is called with inputs it cannot act on.
func NewPreconditionError(format string, args ...interface{}) error {
	return errors.Errorf("precondition failed: "+format, args...)
}
