package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const recordsTable = "translation_records"

// timeLayout is fixed-width so that stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var recordColumns = []string{
	"id", "src_lang", "dst_lang", "src_text", "dst_text", "suggestion",
	"correct", "feedback", "validated", "model_name", "model_version",
	"acting_user", "validated_by", "created_at", "updated_at",
}

var insertColumns = append(append([]string{}, recordColumns...), "src_fold", "dst_fold")

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertRecords stores recs in one transaction: either all are written or
// none. Missing IDs and timestamps are filled in on the passed records.
func (s *Store) InsertRecords(ctx context.Context, recs ...*Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, rec := range recs {
		if err := insertRecord(ctx, tx, rec, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	return nil
}

func insertRecord(ctx context.Context, ex execer, rec *Record, now time.Time) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query, args, err := sq.Insert(recordsTable).
		Columns(insertColumns...).
		Values(
			rec.ID, rec.SrcLang, rec.DstLang, rec.SrcText, rec.DstText, nullString(rec.Suggestion),
			nullBool(rec.Correct), nullBool(rec.Feedback), boolInt(rec.Validated),
			nullString(rec.ModelName), nullString(rec.ModelVersion),
			nullString(rec.ActingUser), nullString(rec.ValidatedBy),
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
			foldText(rec.SrcText), foldText(rec.DstText),
		).ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting record %s: %w", rec.ID, err)
	}
	return nil
}

// GetRecord returns the record with the given id.
func (s *Store) GetRecord(ctx context.Context, id string) (Record, error) {
	recs, err := s.selectRecords(ctx, s.db, sq.Select(recordColumns...).From(recordsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return recs[0], nil
}

// CacheCandidates returns validated, correct records whose source language
// is one of langs and whose source or destination text equals text
// case-insensitively. Newest records come first.
func (s *Store) CacheCandidates(ctx context.Context, langs []string, text string) ([]Record, error) {
	folded := foldText(text)
	q := sq.Select(recordColumns...).From(recordsTable).
		Where(sq.Eq{"correct": 1, "validated": 1, "src_lang": langs}).
		Where(sq.Or{sq.Eq{"src_fold": folded}, sq.Eq{"dst_fold": folded}}).
		OrderBy("created_at DESC", "seq DESC")
	return s.selectRecords(ctx, s.db, q)
}

// ListRecords returns records matching f, newest first.
func (s *Store) ListRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	q := sq.Select(recordColumns...).From(recordsTable).OrderBy("created_at DESC", "seq DESC")
	if len(f.Langs) > 0 {
		q = q.Where(sq.Or{sq.Eq{"src_lang": f.Langs}, sq.Eq{"dst_lang": f.Langs}})
	}
	if f.Validated != nil {
		q = q.Where(sq.Eq{"validated": boolInt(*f.Validated)})
	}
	if f.Correct != nil {
		q = q.Where(sq.Eq{"correct": boolInt(*f.Correct)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		if f.Limit <= 0 {
			q = q.Limit(math.MaxInt64)
		}
		q = q.Offset(uint64(f.Offset))
	}
	return s.selectRecords(ctx, s.db, q)
}

// ReviewFunc mutates an unreviewed record and returns any records to create
// alongside it.
type ReviewFunc func(rec *Record) ([]*Record, error)

// ReviewRecord applies fn to the unreviewed record id and writes the result
// together with the records fn returns in a single transaction. The update
// is conditional on the record still being unvalidated, so of two concurrent
// reviews exactly one wins; the other gets ErrAlreadyReviewed.
func (s *Store) ReviewRecord(ctx context.Context, id string, fn ReviewFunc) (Record, []*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, nil, fmt.Errorf("beginning review: %w", err)
	}
	defer tx.Rollback()

	recs, err := s.selectRecords(ctx, tx, sq.Select(recordColumns...).From(recordsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return Record{}, nil, err
	}
	if len(recs) == 0 {
		return Record{}, nil, ErrNotFound
	}
	rec := recs[0]
	if rec.Validated {
		return Record{}, nil, ErrAlreadyReviewed
	}

	spawned, err := fn(&rec)
	if err != nil {
		return Record{}, nil, err
	}

	now := time.Now().UTC()
	rec.UpdatedAt = now
	query, args, err := sq.Update(recordsTable).
		Set("src_text", rec.SrcText).
		Set("dst_text", rec.DstText).
		Set("src_fold", foldText(rec.SrcText)).
		Set("dst_fold", foldText(rec.DstText)).
		Set("correct", nullBool(rec.Correct)).
		Set("validated", boolInt(rec.Validated)).
		Set("validated_by", nullString(rec.ValidatedBy)).
		Set("updated_at", formatTime(now)).
		Where(sq.Eq{"id": id, "validated": 0}).
		ToSql()
	if err != nil {
		return Record{}, nil, fmt.Errorf("building review update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return Record{}, nil, fmt.Errorf("updating record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, nil, fmt.Errorf("checking updated rows: %w", err)
	}
	if n != 1 {
		return Record{}, nil, ErrAlreadyReviewed
	}

	for _, sp := range spawned {
		if err := insertRecord(ctx, tx, sp, now); err != nil {
			return Record{}, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Record{}, nil, fmt.Errorf("committing review: %w", err)
	}
	return rec, spawned, nil
}

// RecordStats counts records by review state.
func (s *Store) RecordStats(ctx context.Context) (RecordStats, error) {
	var st RecordStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN validated = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validated = 1 AND correct = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validated = 1 AND correct = 0 THEN 1 ELSE 0 END), 0)
		FROM translation_records`,
	).Scan(&st.Total, &st.Unreviewed, &st.Correct, &st.Incorrect)
	if err != nil {
		return RecordStats{}, fmt.Errorf("counting records: %w", err)
	}
	return st, nil
}

func (s *Store) selectRecords(ctx context.Context, qr queryer, b sq.SelectBuilder) ([]Record, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := qr.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r                                   Record
		suggestion, modelName, modelVersion sql.NullString
		actingUser, validatedBy             sql.NullString
		correct, feedback                   sql.NullBool
		createdAt, updatedAt                string
	)
	if err := rows.Scan(
		&r.ID, &r.SrcLang, &r.DstLang, &r.SrcText, &r.DstText, &suggestion,
		&correct, &feedback, &r.Validated, &modelName, &modelVersion,
		&actingUser, &validatedBy, &createdAt, &updatedAt,
	); err != nil {
		return Record{}, fmt.Errorf("scanning record: %w", err)
	}

	r.Suggestion = suggestion.String
	r.ModelName = modelName.String
	r.ModelVersion = modelVersion.String
	r.ActingUser = actingUser.String
	r.ValidatedBy = validatedBy.String
	if correct.Valid {
		r.Correct = Bool(correct.Bool)
	}
	if feedback.Valid {
		r.Feedback = Bool(feedback.Bool)
	}

	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Record{}, fmt.Errorf("parsing created_at for record %s: %w", r.ID, err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Record{}, fmt.Errorf("parsing updated_at for record %s: %w", r.ID, err)
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolInt(*b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
