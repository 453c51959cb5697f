package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/trad/internal/storage"
)

func newTestCatalog(t *testing.T) (*Catalog, *storage.Store) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

const languagesJSON = `[
	{"code": "spa_Latn", "name": "Spanish"},
	{"code": "quy_Latn", "name": "Ayacucho Quechua"},
	{"code": "quz_Latn", "name": "Cusco Quechua"},
	{"code": "grn_Latn", "name": "Guarani", "is_native": true}
]`

func TestImportLanguagesAndResolve(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	n, err := c.ImportLanguages(ctx, strings.NewReader(languagesJSON))
	if err != nil {
		t.Fatalf("ImportLanguages: %v", err)
	}
	if n != 4 {
		t.Errorf("imported %d, want 4", n)
	}

	l, err := c.Resolve(ctx, "grn_Latn")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !l.IsNative || l.Name != "Guarani" {
		t.Errorf("language = %+v", l)
	}

	if _, err := c.Resolve(ctx, "xxx"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestImportLanguagesRejectsMissingCode(t *testing.T) {
	c, _ := newTestCatalog(t)

	_, err := c.ImportLanguages(context.Background(), strings.NewReader(`[{"name": "Nameless"}]`))
	if err == nil {
		t.Fatal("expected error for missing code")
	}
}

func TestMarkNativeAndList(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	if _, err := c.ImportLanguages(ctx, strings.NewReader(languagesJSON)); err != nil {
		t.Fatalf("ImportLanguages: %v", err)
	}

	n, err := c.MarkNative(ctx, " qu ")
	if err != nil {
		t.Fatalf("MarkNative: %v", err)
	}
	if n != 2 {
		t.Errorf("marked %d, want 2", n)
	}

	quechua, err := c.List(ctx, "qu")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, l := range quechua {
		if !l.IsNative {
			t.Errorf("%s not native", l.Code)
		}
	}
	if len(quechua) != 2 {
		t.Errorf("listed %d, want 2", len(quechua))
	}
}

func TestImportPairs(t *testing.T) {
	c, s := newTestCatalog(t)
	ctx := context.Background()
	if _, err := c.ImportLanguages(ctx, strings.NewReader(languagesJSON)); err != nil {
		t.Fatalf("ImportLanguages: %v", err)
	}

	pairs := `[
		{"src_lang": "spa_Latn", "dst_lang": "quy_Latn", "src_text": "agua", "dst_text": "yaku", "correct": true},
		{"src_lang": "spa_Latn", "dst_lang": "quy_Latn", "src_text": "fuego", "dst_text": "yaku", "correct": false}
	]`
	n, err := c.ImportPairs(ctx, strings.NewReader(pairs), "loader")
	if err != nil {
		t.Fatalf("ImportPairs: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d, want 2", n)
	}

	hits, err := s.CacheCandidates(ctx, []string{"spa_Latn", "quy_Latn"}, "AGUA")
	if err != nil {
		t.Fatalf("CacheCandidates: %v", err)
	}
	if len(hits) != 1 || hits[0].ValidatedBy != "loader" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestImportPairsAllOrNothing(t *testing.T) {
	c, s := newTestCatalog(t)
	ctx := context.Background()
	if _, err := c.ImportLanguages(ctx, strings.NewReader(languagesJSON)); err != nil {
		t.Fatalf("ImportLanguages: %v", err)
	}

	pairs := `[
		{"src_lang": "spa_Latn", "dst_lang": "quy_Latn", "src_text": "agua", "dst_text": "yaku", "correct": true},
		{"src_lang": "spa_Latn", "dst_lang": "nope", "src_text": "sol", "dst_text": "inti", "correct": true}
	]`
	if _, err := c.ImportPairs(ctx, strings.NewReader(pairs), "loader"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want wrapped ErrNotFound", err)
	}

	st, err := s.RecordStats(ctx)
	if err != nil {
		t.Fatalf("RecordStats: %v", err)
	}
	if st.Total != 0 {
		t.Errorf("stored %d records, want 0", st.Total)
	}
}
