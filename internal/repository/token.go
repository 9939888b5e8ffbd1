package repository

import (
	"context"
	"time"

	"attachstore/internal/model"
)

// TokenRepository defines data access for access tokens.
type TokenRepository interface {
	// FindByViewer returns the token row for (record, user, ip) regardless
	// of expiry, or sql.ErrNoRows-wrapped error if none exists.
	FindByViewer(ctx context.Context, recordID, userID, sourceIP string) (*model.AccessToken, error)

	// Upsert inserts the token row, or — when a row for the same
	// (record, user, ip) triple already exists — refreshes its expiry in
	// place. It returns the winning row, so concurrent issuance for one
	// triple converges on a single token.
	Upsert(ctx context.Context, t *model.AccessToken) (*model.AccessToken, error)

	// FindValid returns the token matching exactly token+user+ip with an
	// expiry in the future. A miss is indistinguishable between absent,
	// expired and mismatched.
	FindValid(ctx context.Context, token, userID, sourceIP string, now time.Time) (*model.AccessToken, error)

	// TokenExists reports whether a token string is already taken.
	TokenExists(ctx context.Context, token string) (bool, error)

	// PurgeExpired deletes every token whose expiry has passed and returns
	// the number of rows removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
