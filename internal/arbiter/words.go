package arbiter

import (
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the longest text, in characters, a record can hold.
const MaxTextLength = 10000

// CountWords counts whitespace-separated words, treating newlines as spaces.
func CountWords(text string) int {
	return len(strings.Fields(strings.ReplaceAll(text, "\n", " ")))
}

func checkText(field, text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid(field, "must not be empty")
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return invalid(field, "is %d characters long, limit is %d", n, MaxTextLength)
	}
	return nil
}
