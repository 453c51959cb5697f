package arbiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/trad/internal/inference"
	"github.com/kalambet/trad/internal/storage"
)

// Inferer runs a single translation hop.
type Inferer interface {
	Infer(ctx context.Context, req inference.Request) (inference.Result, error)
}

// Hop is one call to the inference backend.
type Hop struct {
	Src      string
	Dst      string
	Endpoint inference.Endpoint
}

// Route is the chosen path for a language pair.
type Route struct {
	// Rule is the priority rule that matched, 1 through 4.
	Rule int
	Hops []Hop
}

// Router sends text through the native and general models, pivoting via
// the hub language when one side is only served by the native model.
type Router struct {
	backend Inferer
	hub     string
}

// NewRouter creates a Router pivoting through the hub language code.
func NewRouter(backend Inferer, hub string) *Router {
	return &Router{backend: backend, hub: hub}
}

// Plan picks the route for src->dst. Rules are checked in order:
//
//  1. native source, destination not the hub: native src->hub, general hub->dst
//  2. source not the hub, native destination: general src->hub, native hub->dst
//  3. neither side native: general src->dst
//  4. otherwise: native src->dst
func (r *Router) Plan(src, dst storage.Language) Route {
	switch {
	case src.IsNative && dst.Code != r.hub:
		return Route{Rule: 1, Hops: []Hop{
			{Src: src.Code, Dst: r.hub, Endpoint: inference.Native},
			{Src: r.hub, Dst: dst.Code, Endpoint: inference.General},
		}}
	case src.Code != r.hub && dst.IsNative:
		return Route{Rule: 2, Hops: []Hop{
			{Src: src.Code, Dst: r.hub, Endpoint: inference.General},
			{Src: r.hub, Dst: dst.Code, Endpoint: inference.Native},
		}}
	case !src.IsNative && !dst.IsNative:
		return Route{Rule: 3, Hops: []Hop{{Src: src.Code, Dst: dst.Code, Endpoint: inference.General}}}
	default:
		return Route{Rule: 4, Hops: []Hop{{Src: src.Code, Dst: dst.Code, Endpoint: inference.Native}}}
	}
}

// Translate runs the planned hops in order, feeding each output into the
// next. The result carries the provenance of the last hop. Any failure is
// reported as ErrInference.
func (r *Router) Translate(ctx context.Context, text string, src, dst storage.Language) (inference.Result, error) {
	route := r.Plan(src, dst)
	slog.Debug("routing translation", "src", src.Code, "dst", dst.Code, "rule", route.Rule, "hops", len(route.Hops))

	var res inference.Result
	for i, hop := range route.Hops {
		out, err := r.backend.Infer(ctx, inference.Request{
			Text:     text,
			SrcLang:  hop.Src,
			DstLang:  hop.Dst,
			Endpoint: hop.Endpoint,
		})
		if err != nil {
			return inference.Result{}, fmt.Errorf("%w: hop %d (%s %s->%s): %w", ErrInference, i+1, hop.Endpoint, hop.Src, hop.Dst, err)
		}
		res = out
		text = out.Text
	}
	return res, nil
}
