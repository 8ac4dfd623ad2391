package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists consent records. The (subject, purpose) primary key
// makes upserts naturally last-write-wins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the consent table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS consents (
			subject_id TEXT NOT NULL,
			purpose    TEXT NOT NULL,
			granted    BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (subject_id, purpose)
		)`)
	if err != nil {
		return fmt.Errorf("ensure consent schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Grant(ctx context.Context, subjectID, purpose string) error {
	return s.upsert(ctx, subjectID, purpose, true)
}

func (s *PostgresStore) Revoke(ctx context.Context, subjectID, purpose string) error {
	return s.upsert(ctx, subjectID, purpose, false)
}

func (s *PostgresStore) upsert(ctx context.Context, subjectID, purpose string, granted bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consents (subject_id, purpose, granted, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_id, purpose)
		DO UPDATE SET granted = EXCLUDED.granted, updated_at = EXCLUDED.updated_at`,
		subjectID, purpose, granted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasConsent(ctx context.Context, subjectID, purpose string) (bool, error) {
	var granted bool
	err := s.db.QueryRowContext(ctx,
		`SELECT granted FROM consents WHERE subject_id = $1 AND purpose = $2`,
		subjectID, purpose).Scan(&granted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query consent: %w", err)
	}
	return granted, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id, purpose, granted, updated_at FROM consents WHERE subject_id = $1 ORDER BY purpose`,
		subjectID)
	if err != nil {
		return nil, fmt.Errorf("query consents by subject: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SubjectID, &rec.Purpose, &rec.Granted, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
