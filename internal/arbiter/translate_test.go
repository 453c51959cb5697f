package arbiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/trad/internal/inference"
	"github.com/kalambet/trad/internal/storage"
)

func newTestTranslator(t *testing.T, inf Inferer, policy Policy) (*Translator, *storage.Store) {
	t.Helper()
	s := openTestStore(t)
	tr := NewTranslator(NewMatcher(s), NewRouter(inf, hub), s, testLangs, policy)
	return tr, s
}

func TestHandleMissCallsBackendAndStores(t *testing.T) {
	inf := &fakeInferer{}
	tr, s := newTestTranslator(t, inf, Policy{MaxWords: 150})

	rec, err := tr.Handle(context.Background(), &Principal{ID: "u-1", Role: RoleUser}, eng, spa, "good morning")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.DstText != "spa_Latn(good morning)" || rec.DstLang != spa.Code {
		t.Errorf("record = %+v", rec)
	}
	if rec.ModelName != "general-model" || rec.ModelVersion != "1" {
		t.Errorf("provenance = %q/%q", rec.ModelName, rec.ModelVersion)
	}

	stored, err := s.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if stored.Validated || stored.Correct != nil || stored.Feedback != nil {
		t.Errorf("stored record has review state: %+v", stored)
	}
	if stored.ActingUser != "u-1" {
		t.Errorf("ActingUser = %q, want u-1", stored.ActingUser)
	}
}

func TestHandleCacheHitSkipsBackend(t *testing.T) {
	inf := &fakeInferer{}
	tr, s := newTestTranslator(t, inf, Policy{})
	seedValidated(t, s, spa.Code, quy.Code, "agua", "yaku")

	rec, err := tr.Handle(context.Background(), nil, spa, quy, "Agua")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if inf.callCount() != 0 {
		t.Errorf("backend called %d times on cache hit", inf.callCount())
	}
	if rec.DstText != "yaku" || rec.DstLang != quy.Code {
		t.Errorf("record = %+v", rec)
	}
	if rec.ModelName != "" || rec.ActingUser != "" {
		t.Errorf("cached record has provenance or user: %+v", rec)
	}
	if len(allRecords(t, s)) != 2 {
		t.Errorf("expected the cached answer to be recorded")
	}
}

func TestHandleSameLanguageEchoes(t *testing.T) {
	inf := &fakeInferer{}
	tr, s := newTestTranslator(t, inf, Policy{})

	rec, err := tr.Handle(context.Background(), nil, quy, quy, "allin p'unchaw")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.DstText != "allin p'unchaw" || rec.ModelName != "" || rec.ID != "" {
		t.Errorf("record = %+v", rec)
	}
	if inf.callCount() != 0 {
		t.Error("backend called for same-language request")
	}
	if n := len(allRecords(t, s)); n != 0 {
		t.Errorf("stored %d records, want 0", n)
	}
}

func TestHandleWordLimit(t *testing.T) {
	inf := &fakeInferer{}
	tr, _ := newTestTranslator(t, inf, Policy{MaxWords: 3})

	if _, err := tr.Handle(context.Background(), nil, eng, spa, "one two\nthree"); err != nil {
		t.Fatalf("three words: %v", err)
	}

	_, err := tr.Handle(context.Background(), nil, eng, spa, "one two\nthree four")
	wantValidationField(t, err, "src_text")
	if inf.callCount() != 1 {
		t.Errorf("backend called %d times, want 1", inf.callCount())
	}
}

func TestHandleRejectsEmptyAndOversizedText(t *testing.T) {
	tr, _ := newTestTranslator(t, &fakeInferer{}, Policy{})

	_, err := tr.Handle(context.Background(), nil, eng, spa, "   ")
	wantValidationField(t, err, "src_text")

	_, err = tr.Handle(context.Background(), nil, eng, spa, strings.Repeat("a", MaxTextLength+1))
	wantValidationField(t, err, "src_text")
}

func TestHandleRequiresAuthWhenEnabled(t *testing.T) {
	inf := &fakeInferer{}
	tr, s := newTestTranslator(t, inf, Policy{RequireAuth: true})

	_, err := tr.Handle(context.Background(), nil, eng, spa, "hello")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	// Checked before validation.
	_, err = tr.TranslateCodes(context.Background(), nil, "nope", "spa_Latn", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if inf.callCount() != 0 || len(allRecords(t, s)) != 0 {
		t.Error("work done for unauthorized request")
	}

	if _, err := tr.Handle(context.Background(), &Principal{ID: "u", Role: RoleUser}, eng, spa, "hello"); err != nil {
		t.Errorf("authenticated Handle: %v", err)
	}
}

func TestHandleBackendFailure(t *testing.T) {
	inf := &fakeInferer{inferFn: func(context.Context, inference.Request) (inference.Result, error) {
		return inference.Result{}, errors.New("connection refused to 10.0.0.7")
	}}
	tr, s := newTestTranslator(t, inf, Policy{})

	_, err := tr.Handle(context.Background(), nil, eng, quy, "hello")
	if err != ErrInference {
		t.Fatalf("error = %v, want bare ErrInference", err)
	}
	if n := len(allRecords(t, s)); n != 0 {
		t.Errorf("stored %d records after failure, want 0", n)
	}
}

func TestHandleTimeout(t *testing.T) {
	inf := &fakeInferer{inferFn: func(ctx context.Context, _ inference.Request) (inference.Result, error) {
		<-ctx.Done()
		return inference.Result{}, ctx.Err()
	}}
	tr, _ := newTestTranslator(t, inf, Policy{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := tr.Handle(context.Background(), nil, eng, spa, "hello")
	if !errors.Is(err, ErrInference) {
		t.Fatalf("error = %v, want ErrInference", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not enforced")
	}
}

func TestTranslateCodesUnknownLanguage(t *testing.T) {
	tr, _ := newTestTranslator(t, &fakeInferer{}, Policy{})

	_, err := tr.TranslateCodes(context.Background(), nil, "xxx_Latn", spa.Code, "hola")
	wantValidationField(t, err, "src_lang")

	_, err = tr.TranslateCodes(context.Background(), nil, spa.Code, "", "hola")
	wantValidationField(t, err, "dst_lang")

	rec, err := tr.TranslateCodes(context.Background(), nil, eng.Code, spa.Code, "hi")
	if err != nil {
		t.Fatalf("TranslateCodes: %v", err)
	}
	if rec.DstText != "spa_Latn(hi)" {
		t.Errorf("DstText = %q", rec.DstText)
	}
}
