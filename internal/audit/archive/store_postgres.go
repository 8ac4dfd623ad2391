package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"caretrust/internal/audit"
)

// PostgresStore archives sealed records in Postgres for operational queries.
// Rows are insert-only; the table carries the chain fields verbatim so an
// archived record can be cross-checked against the log file.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the archive table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_archive (
			id         TEXT PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			resource   TEXT,
			subject    TEXT,
			outcome    TEXT NOT NULL,
			phi        BOOLEAN NOT NULL,
			reason     TEXT,
			ip         TEXT,
			user_agent TEXT,
			metadata   JSONB NOT NULL DEFAULT '{}',
			prev_hash  TEXT NOT NULL,
			hash       TEXT NOT NULL,
			hmac       TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure audit archive schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS audit_archive_actor_ts_idx ON audit_archive (actor, ts DESC)`)
	if err != nil {
		return fmt.Errorf("ensure audit archive index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec audit.Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal archive metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_archive
			(id, ts, actor, action, resource, subject, outcome, phi, reason, ip, user_agent, metadata, prev_hash, hash, hmac)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		rec.ID, time.UnixMilli(rec.TS).UTC(), rec.Actor, rec.Action,
		nullable(rec.Resource), nullable(rec.Subject), string(rec.Outcome), rec.PHI,
		nullable(rec.Reason), nullable(rec.IP), nullable(rec.UserAgent), meta,
		rec.PrevHash, rec.Hash, rec.HMAC)
	if err != nil {
		return fmt.Errorf("insert audit archive record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM audit_archive WHERE actor = $1 ORDER BY ts`, actor)
	if err != nil {
		return nil, fmt.Errorf("query audit archive by actor: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM audit_archive ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit archive records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

const selectColumns = `SELECT id, ts, actor, action, resource, subject, outcome, phi, reason, ip, user_agent, metadata, prev_hash, hash, hmac`

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	var out []audit.Record
	for rows.Next() {
		var (
			rec                                  audit.Record
			ts                                   time.Time
			resource, subject, reason, ip, agent sql.NullString
			meta                                 []byte
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Actor, &rec.Action, &resource, &subject,
			&rec.Outcome, &rec.PHI, &reason, &ip, &agent, &meta,
			&rec.PrevHash, &rec.Hash, &rec.HMAC); err != nil {
			return nil, fmt.Errorf("scan audit archive record: %w", err)
		}
		rec.TS = ts.UnixMilli()
		rec.Resource = resource.String
		rec.Subject = subject.String
		rec.Reason = reason.String
		rec.IP = ip.String
		rec.UserAgent = agent.String
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal archive metadata: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
