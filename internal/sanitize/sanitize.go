// Package sanitize checks identifiers received from outside the process
// (entity IDs, event names, user IDs) before they reach the engine, logs or storage keys.
package sanitize

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxIdentifierSize bounds every identifier, in bytes.
const MaxIdentifierSize = 256

var (
	ErrTooLarge     = errors.New("identifier exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("identifier contains invalid UTF-8 sequences")
	ErrControlChars = errors.New("identifier contains control characters")
)

// Identifier rejects values that are too large, not UTF-8, or carry control
// characters (ANSI escapes, NUL, newlines). Empty values pass; requiredness
// is checked by the engine.
func Identifier(field, value string) error {
	if len(value) > MaxIdentifierSize {
		return fmt.Errorf("%s: %w: size=%d limit=%d", field, ErrTooLarge, len(value), MaxIdentifierSize)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%s: %w", field, ErrInvalidUTF8)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s: %w", field, ErrControlChars)
		}
	}
	return nil
}

// Identifiers checks field/value pairs in order and returns the first failure.
func Identifiers(pairs ...string) error {
	if len(pairs)%2 != 0 {
		panic("sanitize: Identifiers needs field/value pairs")
	}
	for i := 0; i < len(pairs); i += 2 {
		if err := Identifier(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}
