package storage

import (
	"context"
	"errors"
	"testing"
)

func TestGetLanguage(t *testing.T) {
	s := openTestStore(t)
	seedLanguages(t, s)

	l, err := s.GetLanguage(context.Background(), "quy_Latn")
	if err != nil {
		t.Fatalf("GetLanguage: %v", err)
	}
	if l.Name != "Quechua" || !l.IsNative {
		t.Errorf("language = %+v", l)
	}

	if _, err := s.GetLanguage(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpsertLanguagesUpdates(t *testing.T) {
	s := openTestStore(t)
	seedLanguages(t, s)
	ctx := context.Background()

	if err := s.UpsertLanguages(ctx, Language{Code: "eng_Latn", Name: "English (US)", IsNative: true}); err != nil {
		t.Fatalf("UpsertLanguages: %v", err)
	}
	l, err := s.GetLanguage(ctx, "eng_Latn")
	if err != nil {
		t.Fatalf("GetLanguage: %v", err)
	}
	if l.Name != "English (US)" || !l.IsNative {
		t.Errorf("language = %+v", l)
	}
}

func TestListLanguages(t *testing.T) {
	s := openTestStore(t)
	seedLanguages(t, s)
	ctx := context.Background()

	all, err := s.ListLanguages(ctx, LanguageFilter{})
	if err != nil {
		t.Fatalf("ListLanguages: %v", err)
	}
	if len(all) != 4 || all[0].Code != "eng_Latn" {
		t.Errorf("all = %+v, want 4 ordered by code", all)
	}

	byCode, err := s.ListLanguages(ctx, LanguageFilter{Code: "QU"})
	if err != nil {
		t.Fatalf("ListLanguages: %v", err)
	}
	if len(byCode) != 1 || byCode[0].Code != "quy_Latn" {
		t.Errorf("by code = %+v", byCode)
	}

	native, err := s.ListLanguages(ctx, LanguageFilter{Native: Bool(true)})
	if err != nil {
		t.Fatalf("ListLanguages: %v", err)
	}
	if len(native) != 2 {
		t.Errorf("native = %+v, want 2", native)
	}
}

func TestMarkNative(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.UpsertLanguages(ctx,
		Language{Code: "aym_Latn"},
		Language{Code: "ayr_Latn"},
		Language{Code: "quy_Latn"},
	)
	if err != nil {
		t.Fatalf("UpsertLanguages: %v", err)
	}

	n, err := s.MarkNative(ctx, "ay")
	if err != nil {
		t.Fatalf("MarkNative: %v", err)
	}
	if n != 2 {
		t.Errorf("changed %d rows, want 2", n)
	}

	n, err = s.MarkNative(ctx, "ay")
	if err != nil {
		t.Fatalf("MarkNative: %v", err)
	}
	if n != 0 {
		t.Errorf("second call changed %d rows, want 0", n)
	}

	q, err := s.GetLanguage(ctx, "quy_Latn")
	if err != nil {
		t.Fatalf("GetLanguage: %v", err)
	}
	if q.IsNative {
		t.Error("quy_Latn should not be native")
	}

	if _, err := s.MarkNative(ctx, ""); err == nil {
		t.Error("expected error for empty prefix")
	}
}
