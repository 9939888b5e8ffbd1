package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"attachstore/internal/config"
	"attachstore/internal/model"
	repoMocks "attachstore/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTokenService(tokens *repoMocks.MockTokenRepository, records *repoMocks.MockRecordRepository, at time.Time) *tokenService {
	svc := NewTokenService(tokens, records, config.TokenConfig{TTLMinutes: 30, Length: 32}).(*tokenService)
	svc.now = func() time.Time { return at }
	return svc
}

func TestTokenIssue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	viewer := model.Identity{UserID: "u1", IP: "10.0.0.1"}
	rec := &model.StorageRecord{ID: "rec-1"}

	t.Run("new token for fresh triple", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		records := new(repoMocks.MockRecordRepository)
		svc := newTokenService(tokens, records, now)

		tokens.On("FindByViewer", mock.Anything, "rec-1", "u1", "10.0.0.1").
			Return(nil, sql.ErrNoRows).Once()
		tokens.On("TokenExists", mock.Anything, mock.AnythingOfType("string")).
			Return(false, nil).Once()
		tokens.On("PurgeExpired", mock.Anything, now).Return(int64(0), nil).Once()
		tokens.On("Upsert", mock.Anything, mock.MatchedBy(func(tok *model.AccessToken) bool {
			return tok.StorageRecordID == "rec-1" &&
				tok.UserID == "u1" &&
				tok.SourceIP == "10.0.0.1" &&
				tok.ExpiresAt.Equal(now.Add(30*time.Minute)) &&
				len(tok.Token) == 32 &&
				model.TokenPattern.MatchString(tok.Token)
		})).Return(func(ctx context.Context, tok *model.AccessToken) *model.AccessToken {
			return tok
		}, nil).Once()

		token, err := svc.Issue(context.Background(), rec, viewer)
		require.NoError(t, err)
		assert.Len(t, token, 32)
		tokens.AssertExpectations(t)
	})

	t.Run("existing triple is refreshed not duplicated", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		records := new(repoMocks.MockRecordRepository)
		svc := newTokenService(tokens, records, now)

		tokens.On("FindByViewer", mock.Anything, "rec-1", "u1", "10.0.0.1").
			Return(&model.AccessToken{Token: "ExistingTok"}, nil).Once()
		tokens.On("PurgeExpired", mock.Anything, now).Return(int64(2), nil).Once()
		tokens.On("Upsert", mock.Anything, mock.MatchedBy(func(tok *model.AccessToken) bool {
			return tok.Token == "ExistingTok" && tok.ExpiresAt.Equal(now.Add(30*time.Minute))
		})).Return(func(ctx context.Context, tok *model.AccessToken) *model.AccessToken {
			return tok
		}, nil).Once()

		token, err := svc.Issue(context.Background(), rec, viewer)
		require.NoError(t, err)
		assert.Equal(t, "ExistingTok", token)
		tokens.AssertNotCalled(t, "TokenExists", mock.Anything, mock.Anything)
	})

	t.Run("purge failure does not block issuance", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		records := new(repoMocks.MockRecordRepository)
		svc := newTokenService(tokens, records, now)

		tokens.On("FindByViewer", mock.Anything, "rec-1", "u1", "10.0.0.1").
			Return(&model.AccessToken{Token: "ExistingTok"}, nil).Once()
		tokens.On("PurgeExpired", mock.Anything, now).Return(int64(0), sql.ErrConnDone).Once()
		tokens.On("Upsert", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, tok *model.AccessToken) *model.AccessToken {
				return tok
			}, nil).Once()

		token, err := svc.Issue(context.Background(), rec, viewer)
		require.NoError(t, err)
		assert.Equal(t, "ExistingTok", token)
	})

	t.Run("collision retries generation", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		records := new(repoMocks.MockRecordRepository)
		svc := newTokenService(tokens, records, now)

		tokens.On("FindByViewer", mock.Anything, "rec-1", "u1", "10.0.0.1").
			Return(nil, sql.ErrNoRows).Once()
		tokens.On("TokenExists", mock.Anything, mock.Anything).Return(true, nil).Once()
		tokens.On("TokenExists", mock.Anything, mock.Anything).Return(false, nil).Once()
		tokens.On("PurgeExpired", mock.Anything, now).Return(int64(0), nil).Once()
		tokens.On("Upsert", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, tok *model.AccessToken) *model.AccessToken {
				return tok
			}, nil).Once()

		_, err := svc.Issue(context.Background(), rec, viewer)
		require.NoError(t, err)
		tokens.AssertExpectations(t)
	})
}

func TestTokenValidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	viewer := model.Identity{UserID: "u1", IP: "10.0.0.1"}

	t.Run("valid token resolves the record", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		records := new(repoMocks.MockRecordRepository)
		svc := newTokenService(tokens, records, now)

		tokens.On("FindValid", mock.Anything, "GoodTok1", "u1", "10.0.0.1", now).
			Return(&model.AccessToken{Token: "GoodTok1", StorageRecordID: "rec-1"}, nil).Once()
		records.On("FindByID", mock.Anything, "rec-1").
			Return(&model.StorageRecord{ID: "rec-1"}, nil).Once()

		rec, err := svc.Validate(context.Background(), "GoodTok1", viewer)
		require.NoError(t, err)
		assert.Equal(t, "rec-1", rec.ID)
	})

	t.Run("empty token", func(t *testing.T) {
		svc := newTokenService(new(repoMocks.MockTokenRepository), new(repoMocks.MockRecordRepository), now)
		_, err := svc.Validate(context.Background(), "", viewer)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("token with illegal characters never hits the store", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		svc := newTokenService(tokens, new(repoMocks.MockRecordRepository), now)

		_, err := svc.Validate(context.Background(), "bad-token!", viewer)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		tokens.AssertNotCalled(t, "FindValid", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wrong identity triple", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		svc := newTokenService(tokens, new(repoMocks.MockRecordRepository), now)

		tokens.On("FindValid", mock.Anything, "GoodTok1", "u2", "10.0.0.9", now).
			Return(nil, sql.ErrNoRows).Once()

		_, err := svc.Validate(context.Background(), "GoodTok1", model.Identity{UserID: "u2", IP: "10.0.0.9"})
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("record gone behind a live token", func(t *testing.T) {
		tokens := new(repoMocks.MockTokenRepository)
		records := new(repoMocks.MockRecordRepository)
		svc := newTokenService(tokens, records, now)

		tokens.On("FindValid", mock.Anything, "GoodTok1", "u1", "10.0.0.1", now).
			Return(&model.AccessToken{Token: "GoodTok1", StorageRecordID: "rec-1"}, nil).Once()
		records.On("FindByID", mock.Anything, "rec-1").Return(nil, sql.ErrNoRows).Once()

		_, err := svc.Validate(context.Background(), "GoodTok1", viewer)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
