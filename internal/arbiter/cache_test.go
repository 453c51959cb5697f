package arbiter

import (
	"context"
	"testing"
)

func TestLookupForwardHit(t *testing.T) {
	s := openTestStore(t)
	seedValidated(t, s, spa.Code, quy.Code, "Buenos días", "allin p'unchaw")

	hit, found, err := NewMatcher(s).Lookup(context.Background(), spa, quy, "BUENOS DÍAS")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected a cache hit")
	}
	if hit.Text != "allin p'unchaw" || hit.Lang.Code != quy.Code {
		t.Errorf("hit = %+v, want quechua text", hit)
	}
}

// TestLookupReverseHit stores quy->spa and asks for spa->quy with the
// Spanish text; the Quechua source side is the answer.
func TestLookupReverseHit(t *testing.T) {
	s := openTestStore(t)
	seedValidated(t, s, quy.Code, spa.Code, "allin", "bueno")

	hit, found, err := NewMatcher(s).Lookup(context.Background(), spa, quy, "Bueno")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected a cache hit")
	}
	if hit.Text != "allin" || hit.Lang.Code != quy.Code {
		t.Errorf("hit = %+v, want allin in quy_Latn", hit)
	}
}

// TestLookupReturnsSourceSide covers a candidate for a different
// destination: it matches on the source language and yields its source text
// in the source language.
func TestLookupReturnsSourceSide(t *testing.T) {
	s := openTestStore(t)
	seedValidated(t, s, spa.Code, eng.Code, "hola", "hello")

	hit, found, err := NewMatcher(s).Lookup(context.Background(), spa, quy, "hola")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected a cache hit")
	}
	if hit.Text != "hola" || hit.Lang.Code != spa.Code {
		t.Errorf("hit = %+v, want source side hola/spa_Latn", hit)
	}
}

func TestLookupNewestWins(t *testing.T) {
	s := openTestStore(t)
	seedValidated(t, s, spa.Code, quy.Code, "agua", "yaku")
	seedValidated(t, s, spa.Code, quy.Code, "agua", "unu")

	hit, found, err := NewMatcher(s).Lookup(context.Background(), spa, quy, "agua")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found || hit.Text != "unu" {
		t.Errorf("hit = %+v found=%v, want newest unu", hit, found)
	}
}

func TestLookupMiss(t *testing.T) {
	s := openTestStore(t)
	// Matches the text but involves neither requested language.
	seedValidated(t, s, eng.Code, grn.Code, "agua", "y")
	// Source language in the set, but the other side is not the requested source.
	seedValidated(t, s, quy.Code, eng.Code, "agua", "water")

	_, found, err := NewMatcher(s).Lookup(context.Background(), spa, quy, "agua")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected a cache miss")
	}
}
