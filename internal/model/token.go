package model

import (
	"regexp"
	"time"
)

// TokenPattern is the shape every access token must satisfy.
var TokenPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// AccessToken grants one viewer, from one source address, time-limited read
// access to one private StorageRecord. At most one live token exists per
// (record, user, ip) triple; reissuing refreshes ExpiresAt instead of
// creating a second row.
type AccessToken struct {
	Token           string    `json:"token"`
	StorageRecordID string    `json:"storage_record_id"`
	UserID          string    `json:"user_id"`
	SourceIP        string    `json:"source_ip"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Expired reports whether the token is past its validity window.
func (t *AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Identity is the request-scoped caller context: who is asking, from where,
// and on behalf of which tenant. It is passed explicitly to services instead
// of being read from ambient state.
type Identity struct {
	UserID string
	IP     string
	Tenant string
}
