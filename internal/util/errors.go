package util

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
)

// InvalidInput wraps ErrInvalidInput with a caller-facing reason.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
