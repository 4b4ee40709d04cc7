package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

// PostgresStore keeps records in the sessions table (see internal/db/migrations).
type PostgresStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

type sessionRow struct {
	ID          string    `db:"id"`
	SubjectID   string    `db:"subject_id"`
	Payload     []byte    `db:"payload"`
	SealedToken string    `db:"sealed_token"`
	ExpiresAt   time.Time `db:"expires_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Save upserts rec.
func (p *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec.Session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, subject_id, payload, sealed_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			payload = EXCLUDED.payload,
			sealed_token = EXCLUDED.sealed_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`
	now := p.now()
	_, err = p.db.ExecContext(ctx, query,
		rec.ID,
		rec.Session.SubjectID,
		payload,
		rec.SealedToken,
		rec.ExpiresAt,
		rec.Session.CreatedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get loads the live record for id.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrInvalid
	}
	query := `
		SELECT id, subject_id, payload, sealed_token, expires_at, updated_at
		FROM sessions
		WHERE id = $1 AND expires_at > $2
	`
	var row sessionRow
	if err := p.db.GetContext(ctx, &row, query, id, p.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s auth.Session
	if err := json.Unmarshal(row.Payload, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &Record{
		ID:          row.ID,
		Session:     &s,
		SealedToken: row.SealedToken,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// Delete removes the row for id.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Cleanup deletes expired rows.
func (p *PostgresStore) Cleanup(ctx context.Context) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, p.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
