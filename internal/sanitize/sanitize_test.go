package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{"Plain", "order-1", nil},
		{"Empty", "", nil},
		{"Unicode", "pedido-ç", nil},
		{"Exact Limit", strings.Repeat("a", MaxIdentifierSize), nil},
		{"Over Limit", strings.Repeat("a", MaxIdentifierSize+1), ErrTooLarge},
		{"Invalid UTF8", "bad\xff", ErrInvalidUTF8},
		{"ANSI Escape", "\x1b[31mred", ErrControlChars},
		{"Newline", "a\nb", ErrControlChars},
		{"NUL", "a\x00", ErrControlChars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Identifier("entity_id", tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "entity_id")
		})
	}
}

func TestIdentifiers(t *testing.T) {
	assert.NoError(t, Identifiers("entity_id", "a", "event", "b"))

	err := Identifiers("entity_id", "a", "event", "b\tc")
	assert.ErrorIs(t, err, ErrControlChars)
	assert.Contains(t, err.Error(), "event")

	assert.Panics(t, func() { _ = Identifiers("entity_id") })
}
