package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"attachstore/internal/config"
	"attachstore/internal/model"
	"attachstore/internal/repository"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxTokenAttempts bounds collision retries during token generation.
const maxTokenAttempts = 5

// TokenService mints and validates the short-lived tokens that gate private
// record downloads.
type TokenService interface {
	// Issue returns a live token for (record, viewer.UserID, viewer.IP).
	// An existing token for the triple is refreshed rather than duplicated.
	Issue(ctx context.Context, rec *model.StorageRecord, viewer model.Identity) (string, error)

	// Validate resolves a token back to its record. It fails with
	// ErrTokenInvalid for any miss — absent, expired or wrong identity —
	// without distinguishing the cause.
	Validate(ctx context.Context, token string, viewer model.Identity) (*model.StorageRecord, error)
}

type tokenService struct {
	tokens  repository.TokenRepository
	records repository.RecordRepository
	ttl     time.Duration
	length  int
	now     func() time.Time
}

// NewTokenService constructs a TokenService from config.
func NewTokenService(tokens repository.TokenRepository, records repository.RecordRepository, cfg config.TokenConfig) TokenService {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	length := cfg.Length
	if length <= 0 {
		length = 32
	}
	return &tokenService{
		tokens:  tokens,
		records: records,
		ttl:     ttl,
		length:  length,
		now:     time.Now,
	}
}

func (s *tokenService) Issue(ctx context.Context, rec *model.StorageRecord, viewer model.Identity) (string, error) {
	now := s.now().UTC()

	var token string
	existing, err := s.tokens.FindByViewer(ctx, rec.ID, viewer.UserID, viewer.IP)
	if err == nil {
		token = existing.Token
	} else {
		token, err = s.generate(ctx)
		if err != nil {
			return "", err
		}
	}

	// lazy cleanup; a failure here must not block issuance
	_, _ = s.tokens.PurgeExpired(ctx, now)

	saved, err := s.tokens.Upsert(ctx, &model.AccessToken{
		Token:           token,
		StorageRecordID: rec.ID,
		UserID:          viewer.UserID,
		SourceIP:        viewer.IP,
		ExpiresAt:       now.Add(s.ttl),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	return saved.Token, nil
}

func (s *tokenService) Validate(ctx context.Context, token string, viewer model.Identity) (*model.StorageRecord, error) {
	if token == "" || !model.TokenPattern.MatchString(token) {
		return nil, ErrTokenInvalid
	}
	t, err := s.tokens.FindValid(ctx, token, viewer.UserID, viewer.IP, s.now().UTC())
	if err != nil {
		return nil, ErrTokenInvalid
	}
	rec, err := s.records.FindByID(ctx, t.StorageRecordID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return rec, nil
}

// generate produces a fixed-length alphanumeric token, retrying on the
// unlikely collision with an existing row.
func (s *tokenService) generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		buf := make([]byte, s.length)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		for i, b := range buf {
			buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
		}
		token := string(buf)

		taken, err := s.tokens.TokenExists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check token uniqueness: %w", err)
		}
		if !taken {
			return token, nil
		}
	}
	return "", fmt.Errorf("generate token: exhausted %d attempts", maxTokenAttempts)
}
