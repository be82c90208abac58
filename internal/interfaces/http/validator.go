package http

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Input validation constants
const (
	MaxNameLength        = 128
	MaxDescriptionLength = 2000
	MaxPromptLength      = 50000 // For AI prompts
	MaxMessageLength     = 4096  // Telegram text limit
	MaxDocumentLength    = 100000
	MaxQueryLength       = 100000
)

var strictPolicy = bluemonday.StrictPolicy()

// ValidID checks that a path id is a UUID; anything else cannot exist
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// SanitizeDisplay strips markup from fields the dashboard renders (names, descriptions)
func SanitizeDisplay(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(SanitizeString(s))))
}

// TruncateString safely truncates a string to max runes
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// ValidateLength checks if string is within bounds
func ValidateLength(s string, min, max int) bool {
	l := utf8.RuneCountInString(s)
	return l >= min && l <= max
}
