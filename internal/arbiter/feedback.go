package arbiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/trad/internal/storage"
)

// FeedbackStore is the record storage the feedback operations need.
type FeedbackStore interface {
	RecordWriter
	GetRecord(ctx context.Context, id string) (storage.Record, error)
	ListRecords(ctx context.Context, f storage.RecordFilter) ([]storage.Record, error)
	ReviewRecord(ctx context.Context, id string, fn storage.ReviewFunc) (storage.Record, []*storage.Record, error)
}

// Submission is a user's verdict on a translation they were shown.
type Submission struct {
	SrcLang      string
	DstLang      string
	SrcText      string
	DstText      string
	Suggestion   string
	ModelName    string
	ModelVersion string
}

// ReviewResult is the outcome of a review. Created is set when accepting a
// rejected translation spawned a corrected record.
type ReviewResult struct {
	Record  storage.Record
	Created *storage.Record
}

// Feedback implements submission and review of translation records.
//
// Records move from unreviewed to reviewed-correct or reviewed-incorrect
// exactly once. Trusted reviewers skip the queue: their submissions are
// stored already validated.
type Feedback struct {
	store FeedbackStore
	langs LanguageResolver
}

// NewFeedback creates the feedback state machine over store.
func NewFeedback(store FeedbackStore, langs LanguageResolver) *Feedback {
	return &Feedback{store: store, langs: langs}
}

// SubmitAccept records that the shown translation is good. The suggestion
// is the translation itself.
func (f *Feedback) SubmitAccept(ctx context.Context, p *Principal, s Submission) ([]storage.Record, error) {
	s.Suggestion = s.DstText
	base, err := f.prepare(ctx, p, s)
	if err != nil {
		return nil, err
	}
	base.Feedback = storage.Bool(true)

	if p.CanSelfValidate() {
		base.DstText = s.Suggestion
		base.Correct = storage.Bool(true)
		base.Validated = true
		base.ValidatedBy = p.ID
	}
	return f.insert(ctx, base)
}

// SubmitReject records that the shown translation is wrong, with the
// caller's suggested replacement. A trusted reviewer's rejection stores the
// wrong translation as a validated negative example followed by the
// suggestion as a validated correct record.
func (f *Feedback) SubmitReject(ctx context.Context, p *Principal, s Submission) ([]storage.Record, error) {
	if err := checkText("suggestion", s.Suggestion); err != nil {
		return nil, err
	}
	base, err := f.prepare(ctx, p, s)
	if err != nil {
		return nil, err
	}
	base.Feedback = storage.Bool(false)

	if !p.CanSelfValidate() {
		return f.insert(ctx, base)
	}

	base.Correct = storage.Bool(false)
	base.Validated = true
	base.ValidatedBy = p.ID

	// The corrected record keeps the negative feedback and suggestion.
	fixed := *base
	fixed.DstText = s.Suggestion
	fixed.Correct = storage.Bool(true)
	return f.insert(ctx, base, &fixed)
}

func (f *Feedback) prepare(ctx context.Context, p *Principal, s Submission) (*storage.Record, error) {
	if err := checkText("src_text", s.SrcText); err != nil {
		return nil, err
	}
	if err := checkText("dst_text", s.DstText); err != nil {
		return nil, err
	}
	src, err := resolveField(ctx, f.langs, "src_lang", s.SrcLang)
	if err != nil {
		return nil, err
	}
	dst, err := resolveField(ctx, f.langs, "dst_lang", s.DstLang)
	if err != nil {
		return nil, err
	}
	return &storage.Record{
		SrcLang:      src.Code,
		DstLang:      dst.Code,
		SrcText:      s.SrcText,
		DstText:      s.DstText,
		Suggestion:   s.Suggestion,
		ModelName:    s.ModelName,
		ModelVersion: s.ModelVersion,
		ActingUser:   p.UserID(),
	}, nil
}

func (f *Feedback) insert(ctx context.Context, recs ...*storage.Record) ([]storage.Record, error) {
	if err := f.store.InsertRecords(ctx, recs...); err != nil {
		return nil, fmt.Errorf("storing feedback: %w", err)
	}
	out := make([]storage.Record, len(recs))
	for i, r := range recs {
		out[i] = *r
	}
	return out, nil
}

// ReviewAccept confirms a pending record with reviewer-corrected texts.
//
// A record the user accepted is corrected and validated in place. Rejected
// and unrated records are kept as validated negative examples and a new
// validated record carries the corrected texts. The kept record is stamped
// with the reviewer too.
func (f *Feedback) ReviewAccept(ctx context.Context, reviewer *Principal, id, srcText, dstText string) (ReviewResult, error) {
	if err := checkReviewer(reviewer); err != nil {
		return ReviewResult{}, err
	}
	if err := checkText("src_text", srcText); err != nil {
		return ReviewResult{}, err
	}
	if err := checkText("updated_suggestion", dstText); err != nil {
		return ReviewResult{}, err
	}

	rec, spawned, err := f.store.ReviewRecord(ctx, id, func(r *storage.Record) ([]*storage.Record, error) {
		r.Validated = true
		r.ValidatedBy = reviewer.ID

		if r.Feedback != nil && *r.Feedback {
			r.Correct = storage.Bool(true)
			r.SrcText = srcText
			r.DstText = dstText
			return nil, nil
		}

		r.Correct = storage.Bool(false)
		return []*storage.Record{{
			SrcLang:      r.SrcLang,
			DstLang:      r.DstLang,
			SrcText:      srcText,
			DstText:      dstText,
			Suggestion:   r.Suggestion,
			Correct:      storage.Bool(true),
			Validated:    true,
			ModelName:    r.ModelName,
			ModelVersion: r.ModelVersion,
			ActingUser:   r.ActingUser,
			ValidatedBy:  reviewer.ID,
		}}, nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	res := ReviewResult{Record: rec}
	if len(spawned) > 0 {
		created := *spawned[0]
		res.Created = &created
	}
	slog.Debug("record accepted", "id", id, "reviewer", reviewer.ID, "spawned", res.Created != nil)
	return res, nil
}

// ReviewReject marks a pending record as an incorrect translation. Its
// texts are left as they were.
func (f *Feedback) ReviewReject(ctx context.Context, reviewer *Principal, id string) (storage.Record, error) {
	if err := checkReviewer(reviewer); err != nil {
		return storage.Record{}, err
	}

	rec, _, err := f.store.ReviewRecord(ctx, id, func(r *storage.Record) ([]*storage.Record, error) {
		r.Correct = storage.Bool(false)
		r.Validated = true
		r.ValidatedBy = reviewer.ID
		return nil, nil
	})
	if err != nil {
		return storage.Record{}, err
	}
	slog.Debug("record rejected", "id", id, "reviewer", reviewer.ID)
	return rec, nil
}

// List returns records for the review queue, newest first.
func (f *Feedback) List(ctx context.Context, reviewer *Principal, filter storage.RecordFilter) ([]storage.Record, error) {
	if err := checkReviewer(reviewer); err != nil {
		return nil, err
	}
	return f.store.ListRecords(ctx, filter)
}

// Get returns one record for review.
func (f *Feedback) Get(ctx context.Context, reviewer *Principal, id string) (storage.Record, error) {
	if err := checkReviewer(reviewer); err != nil {
		return storage.Record{}, err
	}
	return f.store.GetRecord(ctx, id)
}

func checkReviewer(p *Principal) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	if !p.CanReview() {
		return ErrForbidden
	}
	return nil
}
