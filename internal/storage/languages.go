package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// UpsertLanguages inserts or updates langs in one transaction.
func (s *Store) UpsertLanguages(ctx context.Context, langs ...Language) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning language upsert: %w", err)
	}
	defer tx.Rollback()

	for _, l := range langs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO languages (code, name, is_native) VALUES (?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET name = excluded.name, is_native = excluded.is_native`,
			l.Code, l.Name, boolInt(l.IsNative),
		)
		if err != nil {
			return fmt.Errorf("upserting language %q: %w", l.Code, err)
		}
	}
	return tx.Commit()
}

// GetLanguage returns the language with the given code.
func (s *Store) GetLanguage(ctx context.Context, code string) (Language, error) {
	var l Language
	err := s.db.QueryRowContext(ctx, "SELECT code, name, is_native FROM languages WHERE code = ?", code).
		Scan(&l.Code, &l.Name, &l.IsNative)
	if errors.Is(err, sql.ErrNoRows) {
		return Language{}, ErrNotFound
	}
	if err != nil {
		return Language{}, fmt.Errorf("getting language %q: %w", code, err)
	}
	return l, nil
}

// ListLanguages returns the catalog ordered by code.
func (s *Store) ListLanguages(ctx context.Context, f LanguageFilter) ([]Language, error) {
	q := sq.Select("code", "name", "is_native").From("languages").OrderBy("code")
	if f.Code != "" {
		q = q.Where(sq.Expr("instr(lower(code), ?) > 0", strings.ToLower(f.Code)))
	}
	if f.Native != nil {
		q = q.Where(sq.Eq{"is_native": boolInt(*f.Native)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building language query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	defer rows.Close()

	var out []Language
	for rows.Next() {
		var l Language
		if err := rows.Scan(&l.Code, &l.Name, &l.IsNative); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MarkNative flags every language whose code starts with prefix as native
// and returns how many rows changed.
func (s *Store) MarkNative(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, fmt.Errorf("empty language prefix")
	}
	query, args, err := sq.Update("languages").
		Set("is_native", 1).
		Where(sq.Expr("substr(code, 1, ?) = ?", len(prefix), prefix)).
		Where(sq.Eq{"is_native": 0}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building native update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking %q native: %w", prefix, err)
	}
	return res.RowsAffected()
}
