package storage

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldText produces the comparison key for case-insensitive text matching.
// SQLite's LOWER only folds ASCII, so the key is computed here and stored
// next to the original text.
func foldText(s string) string {
	// A Caser is stateful; build one per call.
	return cases.Fold().String(norm.NFC.String(s))
}
