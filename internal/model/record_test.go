package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccess(t *testing.T) {
	assert.Equal(t, "private", AccessPrivate.ACL())
	assert.Equal(t, "public-read", AccessPublicRead.ACL())
	assert.Equal(t, "", Access(99).ACL())

	assert.True(t, AccessPrivate.Valid())
	assert.True(t, AccessPublicRead.Valid())
	assert.False(t, Access(0).Valid())
	assert.False(t, Access(99).Valid())
}

func TestVisibleTo(t *testing.T) {
	tests := []struct {
		name   string
		rec    StorageRecord
		tenant string
		want   bool
	}{
		{"own tenant", StorageRecord{Tenant: "t1"}, "t1", true},
		{"foreign tenant", StorageRecord{Tenant: "t1"}, "t2", false},
		{"shared tenant", StorageRecord{Tenant: "t1", SharedWith: []string{"t2"}}, "t2", true},
		{"unlisted tenant", StorageRecord{Tenant: "t1", SharedWith: []string{"t2"}}, "t3", false},
		{"wildcard", StorageRecord{Tenant: "t1", SharedWith: []string{SharedWithAll}}, "t9", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.VisibleTo(tt.tenant))
		})
	}
}

func TestKey(t *testing.T) {
	rec := StorageRecord{FilePath: "product/42/", FileName: "a.pdf"}
	assert.Equal(t, "product/42/a.pdf", rec.Key())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "1 MB", FormatBytes(1<<20))
	assert.Equal(t, "1 GB", FormatBytes(1<<30))
}

func TestTokenPattern(t *testing.T) {
	assert.True(t, TokenPattern.MatchString("Abc123"))
	assert.False(t, TokenPattern.MatchString(""))
	assert.False(t, TokenPattern.MatchString("has-dash"))
	assert.False(t, TokenPattern.MatchString("has space"))
	assert.False(t, TokenPattern.MatchString("semi;colon"))
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	live := AccessToken{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, live.Expired(now))

	stale := AccessToken{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.Expired(now))

	boundary := AccessToken{ExpiresAt: now}
	assert.True(t, boundary.Expired(now))
}
