package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyReviewed is returned when a transition targets a record
	// that has already been validated.
	ErrAlreadyReviewed = errors.New("record already reviewed")
)

// Language is a catalog entry. IsNative marks languages served by the
// native model deployment.
type Language struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsNative bool   `json:"is_native"`
}

// Record is one produced translation together with its review state.
// Correct and Feedback are tri-state: nil means unset.
type Record struct {
	ID           string    `json:"id,omitempty"`
	SrcLang      string    `json:"src_lang"`
	DstLang      string    `json:"dst_lang"`
	SrcText      string    `json:"src_text"`
	DstText      string    `json:"dst_text"`
	Suggestion   string    `json:"suggestion,omitempty"`
	Correct      *bool     `json:"correct"`
	Feedback     *bool     `json:"feedback"`
	Validated    bool      `json:"validated"`
	ModelName    string    `json:"model_name,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	ActingUser   string    `json:"acting_user,omitempty"`
	ValidatedBy  string    `json:"validated_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RecordFilter narrows ListRecords. Langs matches either side of a record.
type RecordFilter struct {
	Langs     []string
	Validated *bool
	Correct   *bool
	Limit     int
	Offset    int
}

// LanguageFilter narrows ListLanguages. Code is a case-insensitive substring.
type LanguageFilter struct {
	Code   string
	Native *bool
}

// RecordStats summarizes the review state of all stored records.
type RecordStats struct {
	Total      int `json:"total"`
	Unreviewed int `json:"unreviewed"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
}

// Bool returns a pointer to b, for setting tri-state fields.
func Bool(b bool) *bool {
	return &b
}
