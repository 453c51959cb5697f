package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/trad/internal/inference"
	"github.com/kalambet/trad/internal/storage"
)

// RecordWriter persists new records atomically.
type RecordWriter interface {
	InsertRecords(ctx context.Context, recs ...*storage.Record) error
}

// LanguageResolver looks up catalog languages by code.
type LanguageResolver interface {
	Resolve(ctx context.Context, code string) (storage.Language, error)
}

// Policy holds the request limits applied before any translation work.
type Policy struct {
	// RequireAuth rejects anonymous translate calls.
	RequireAuth bool
	// MaxWords caps the word count of the source text. Zero disables the cap.
	MaxWords int
	// Timeout bounds the whole inference route for one request.
	Timeout time.Duration
}

// Translator answers translate requests from the cache when it can and
// from the inference backend otherwise, recording every answer.
type Translator struct {
	matcher *Matcher
	router  *Router
	records RecordWriter
	langs   LanguageResolver
	policy  Policy
}

// NewTranslator wires the cache matcher, router and record store together.
func NewTranslator(m *Matcher, r *Router, records RecordWriter, langs LanguageResolver, policy Policy) *Translator {
	return &Translator{matcher: m, router: r, records: records, langs: langs, policy: policy}
}

// TranslateCodes resolves the language codes and calls Handle. Unknown
// codes are validation errors on src_lang or dst_lang.
func (t *Translator) TranslateCodes(ctx context.Context, p *Principal, srcCode, dstCode, text string) (storage.Record, error) {
	if t.policy.RequireAuth && !p.Authenticated() {
		return storage.Record{}, ErrUnauthorized
	}
	src, err := resolveField(ctx, t.langs, "src_lang", srcCode)
	if err != nil {
		return storage.Record{}, err
	}
	dst, err := resolveField(ctx, t.langs, "dst_lang", dstCode)
	if err != nil {
		return storage.Record{}, err
	}
	return t.Handle(ctx, p, src, dst, text)
}

// Handle translates text from src to dst.
//
// Same-language requests are echoed back and not stored. Otherwise the
// cache is consulted first; on a miss the router is called under the
// policy timeout. The resulting record is stored unreviewed and returned.
func (t *Translator) Handle(ctx context.Context, p *Principal, src, dst storage.Language, text string) (storage.Record, error) {
	if t.policy.RequireAuth && !p.Authenticated() {
		return storage.Record{}, ErrUnauthorized
	}
	if err := checkText("src_text", text); err != nil {
		return storage.Record{}, err
	}
	if n := CountWords(text); t.policy.MaxWords > 0 && n > t.policy.MaxWords {
		return storage.Record{}, invalid("src_text", "has %d words, limit is %d", n, t.policy.MaxWords)
	}

	rec := storage.Record{
		SrcLang:    src.Code,
		DstLang:    dst.Code,
		SrcText:    text,
		ActingUser: p.UserID(),
	}

	if src.Code == dst.Code {
		rec.DstText = text
		return rec, nil
	}

	hit, found, err := t.matcher.Lookup(ctx, src, dst, text)
	if err != nil {
		return storage.Record{}, err
	}
	if found {
		rec.DstText = hit.Text
		rec.DstLang = hit.Lang.Code
	} else {
		res, err := t.infer(ctx, text, src, dst)
		if err != nil {
			return storage.Record{}, err
		}
		rec.DstText = res.Text
		rec.ModelName = res.ModelName
		rec.ModelVersion = res.ModelVersion
	}

	if err := t.records.InsertRecords(ctx, &rec); err != nil {
		return storage.Record{}, fmt.Errorf("storing translation: %w", err)
	}
	slog.Debug("translation recorded", "id", rec.ID, "cached", found)
	return rec, nil
}

func (t *Translator) infer(ctx context.Context, text string, src, dst storage.Language) (inference.Result, error) {
	if t.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.policy.Timeout)
		defer cancel()
	}

	res, err := t.router.Translate(ctx, text, src, dst)
	if err != nil {
		slog.Error("translation backend failed", "src", src.Code, "dst", dst.Code, "error", err)
		return inference.Result{}, ErrInference
	}
	return res, nil
}

func resolveField(ctx context.Context, langs LanguageResolver, field, code string) (storage.Language, error) {
	if code == "" {
		return storage.Language{}, invalid(field, "is required")
	}
	l, err := langs.Resolve(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return storage.Language{}, invalid(field, "unsupported language %q", code)
	}
	if err != nil {
		return storage.Language{}, fmt.Errorf("resolving %s: %w", field, err)
	}
	return l, nil
}
