package entry

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTextBytes = 4096 // hard cap on encoded size
	MaxTextChars = 2000 // max character count
)

// ValidateText checks that entry text meets content requirements.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("entry: text is empty: %w", ErrInvalidArgument)
	}
	if len(text) > MaxTextBytes {
		return fmt.Errorf("entry: text exceeds %d byte limit: %w", MaxTextBytes, ErrInvalidArgument)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("entry: text contains invalid UTF-8: %w", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("entry: text exceeds %d character limit: %w", MaxTextChars, ErrInvalidArgument)
	}
	return nil
}
