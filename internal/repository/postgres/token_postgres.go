package postgres

import (
	"context"
	"database/sql"
	"time"

	"attachstore/internal/model"
	"attachstore/internal/repository"
)

// TokenPostgres is a PostgreSQL implementation of repository.TokenRepository.
type TokenPostgres struct {
	db *sql.DB
}

// NewTokenPostgres creates a new TokenPostgres repository.
func NewTokenPostgres(db *sql.DB) *TokenPostgres {
	return &TokenPostgres{db: db}
}

var _ repository.TokenRepository = (*TokenPostgres)(nil)

const tokenColumns = `token, storage_record_id, user_id, source_ip, expires_at, created_at, updated_at`

func scanToken(row interface{ Scan(...any) error }) (*model.AccessToken, error) {
	var t model.AccessToken
	if err := row.Scan(
		&t.Token,
		&t.StorageRecordID,
		&t.UserID,
		&t.SourceIP,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByViewer returns the token row for (record, user, ip) regardless of expiry.
func (r *TokenPostgres) FindByViewer(ctx context.Context, recordID, userID, sourceIP string) (*model.AccessToken, error) {
	const q = `
		SELECT ` + tokenColumns + `
		FROM access_tokens
		WHERE storage_record_id = $1 AND user_id = $2 AND source_ip = $3
	`
	return scanToken(r.db.QueryRowContext(ctx, q, recordID, userID, sourceIP))
}

// Upsert inserts the token row or refreshes the expiry of the existing row
// for the same (record, user, ip) triple. The winning row is returned, so
// concurrent issuance converges on one token.
func (r *TokenPostgres) Upsert(ctx context.Context, t *model.AccessToken) (*model.AccessToken, error) {
	const q = `
		INSERT INTO access_tokens (token, storage_record_id, user_id, source_ip, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (storage_record_id, user_id, source_ip)
		DO UPDATE SET expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
		RETURNING ` + tokenColumns
	row := r.db.QueryRowContext(ctx, q,
		t.Token,
		t.StorageRecordID,
		t.UserID,
		t.SourceIP,
		t.ExpiresAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return scanToken(row)
}

// FindValid returns the unexpired token matching exactly token+user+ip.
func (r *TokenPostgres) FindValid(ctx context.Context, token, userID, sourceIP string, now time.Time) (*model.AccessToken, error) {
	const q = `
		SELECT ` + tokenColumns + `
		FROM access_tokens
		WHERE token = $1 AND user_id = $2 AND source_ip = $3 AND expires_at > $4
	`
	return scanToken(r.db.QueryRowContext(ctx, q, token, userID, sourceIP, now))
}

// TokenExists reports whether a token string is already taken.
func (r *TokenPostgres) TokenExists(ctx context.Context, token string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM access_tokens WHERE token = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// PurgeExpired deletes every token whose expiry has passed.
func (r *TokenPostgres) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM access_tokens WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
