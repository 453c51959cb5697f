package arbiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/trad/internal/storage"
)

// CandidateSource lists validated correct records for a text.
type CandidateSource interface {
	CacheCandidates(ctx context.Context, langs []string, text string) ([]storage.Record, error)
}

// Hit is a cached translation. Lang is the language Text is written in,
// which is not always the requested destination.
type Hit struct {
	Text string
	Lang storage.Language
}

// Matcher finds reusable translations among validated records.
type Matcher struct {
	source CandidateSource
}

// NewMatcher creates a Matcher reading candidates from source.
func NewMatcher(source CandidateSource) *Matcher {
	return &Matcher{source: source}
}

// Lookup returns the newest validated translation of text between src and
// dst, in either direction. The candidate must mention src on one of its
// sides. If its destination is dst the destination text is returned;
// otherwise its source side is.
func (m *Matcher) Lookup(ctx context.Context, src, dst storage.Language, text string) (Hit, bool, error) {
	candidates, err := m.source.CacheCandidates(ctx, []string{src.Code, dst.Code}, text)
	if err != nil {
		return Hit{}, false, fmt.Errorf("loading cache candidates: %w", err)
	}

	for _, c := range candidates {
		if c.SrcLang != src.Code && c.DstLang != src.Code {
			continue
		}
		if c.DstLang == dst.Code {
			slog.Debug("cache hit", "record", c.ID, "side", "dst")
			return Hit{Text: c.DstText, Lang: dst}, true, nil
		}
		lang := src
		if c.SrcLang == dst.Code {
			lang = dst
		}
		slog.Debug("cache hit", "record", c.ID, "side", "src")
		return Hit{Text: c.SrcText, Lang: lang}, true, nil
	}
	return Hit{}, false, nil
}
