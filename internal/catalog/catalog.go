package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kalambet/trad/internal/storage"
)

// Catalog is the language catalog and bulk loader for validated pairs.
type Catalog struct {
	store *storage.Store
}

// New creates a Catalog backed by store.
func New(store *storage.Store) *Catalog {
	return &Catalog{store: store}
}

// Resolve returns the language for code, or storage.ErrNotFound.
func (c *Catalog) Resolve(ctx context.Context, code string) (storage.Language, error) {
	return c.store.GetLanguage(ctx, code)
}

// List returns catalog languages whose code contains codeFilter.
func (c *Catalog) List(ctx context.Context, codeFilter string) ([]storage.Language, error) {
	return c.store.ListLanguages(ctx, storage.LanguageFilter{Code: codeFilter})
}

// MarkNative flags every language whose code starts with prefix as served
// by the native model.
func (c *Catalog) MarkNative(ctx context.Context, prefix string) (int64, error) {
	return c.store.MarkNative(ctx, strings.TrimSpace(prefix))
}

// ImportLanguages reads a JSON array of languages and upserts them.
func (c *Catalog) ImportLanguages(ctx context.Context, r io.Reader) (int, error) {
	var langs []storage.Language
	if err := json.NewDecoder(r).Decode(&langs); err != nil {
		return 0, fmt.Errorf("decoding languages: %w", err)
	}
	for i, l := range langs {
		if strings.TrimSpace(l.Code) == "" {
			return 0, fmt.Errorf("language %d: code is required", i)
		}
	}
	if err := c.store.UpsertLanguages(ctx, langs...); err != nil {
		return 0, err
	}
	return len(langs), nil
}

// Pair is one reviewed translation from an external corpus.
type Pair struct {
	SrcLang string `json:"src_lang"`
	DstLang string `json:"dst_lang"`
	SrcText string `json:"src_text"`
	DstText string `json:"dst_text"`
	Correct bool   `json:"correct"`
}

// ImportPairs reads a JSON array of pairs and stores them as validated
// records attributed to actor. Every language must already exist. Nothing
// is stored if any pair is invalid.
func (c *Catalog) ImportPairs(ctx context.Context, r io.Reader, actor string) (int, error) {
	var pairs []Pair
	if err := json.NewDecoder(r).Decode(&pairs); err != nil {
		return 0, fmt.Errorf("decoding pairs: %w", err)
	}

	known := map[string]bool{}
	recs := make([]*storage.Record, 0, len(pairs))
	for i, p := range pairs {
		if p.SrcText == "" || p.DstText == "" {
			return 0, fmt.Errorf("pair %d: src_text and dst_text are required", i)
		}
		for _, code := range []string{p.SrcLang, p.DstLang} {
			if known[code] {
				continue
			}
			if _, err := c.store.GetLanguage(ctx, code); err != nil {
				return 0, fmt.Errorf("pair %d: language %q: %w", i, code, err)
			}
			known[code] = true
		}
		recs = append(recs, &storage.Record{
			SrcLang:     p.SrcLang,
			DstLang:     p.DstLang,
			SrcText:     p.SrcText,
			DstText:     p.DstText,
			Correct:     storage.Bool(p.Correct),
			Validated:   true,
			ActingUser:  actor,
			ValidatedBy: actor,
		})
	}
	if err := c.store.InsertRecords(ctx, recs...); err != nil {
		return 0, err
	}
	return len(recs), nil
}
