package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"attachstore/internal/config"
	"attachstore/internal/model"
	repoMocks "attachstore/internal/repository/mocks"
	"attachstore/internal/service"
	serviceMocks "attachstore/internal/service/mocks"
	"attachstore/internal/storage"
	storeMocks "attachstore/internal/storage/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app     *fiber.App
	dbMock  sqlmock.Sqlmock
	records *serviceMocks.MockRecordService
	tokens  *serviceMocks.MockTokenService
	store   *storeMocks.MockObjectStore
	repo    *repoMocks.MockRecordRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	records := new(serviceMocks.MockRecordService)
	tokens := new(serviceMocks.MockTokenService)
	store := new(storeMocks.MockObjectStore)
	repo := new(repoMocks.MockRecordRepository)

	resolver := service.NewURLResolver(store, tokens, "localhost:8080",
		config.MinIOConfig{Endpoint: "minio:9000", Bucket: "files"},
		config.StorageConfig{})

	attach := func(attribute string, access model.Access, supersede bool) (*service.Orchestrator, error) {
		return service.NewOrchestrator(store, repo, service.NewFetcher(nil), service.OrchestratorConfig{
			Attributes: []service.AttributeSpec{{
				Name:              attribute,
				Access:            access,
				SupersedePrevious: supersede,
			}},
		})
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})
	RegisterRoutes(app, Deps{
		DB:       db,
		Records:  records,
		Tokens:   tokens,
		Resolver: resolver,
		Store:    store,
		Attach:   attach,
	})

	return &testEnv{app: app, dbMock: dbMock, records: records, tokens: tokens, store: store, repo: repo}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	t.Run("healthy", func(t *testing.T) {
		env.dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		env.dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := env.app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListRecords(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		expectedRes := &service.RecordListResult{
			Items: []model.StorageRecord{{ID: uuid.New().String(), FileName: "test.pdf"}},
			Total: 1,
		}
		env.records.On("List", mock.Anything, 10, 0, mock.Anything, (*model.Status)(nil)).
			Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/records?limit=10&offset=0", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.RecordListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		env.records.AssertExpectations(t)
	})

	t.Run("deleted filter", func(t *testing.T) {
		env := newTestEnv(t)
		env.records.On("List", mock.Anything, 10, 0, mock.Anything, mock.MatchedBy(func(s *model.Status) bool {
			return s != nil && *s == model.StatusDeleted
		})).Return(&service.RecordListResult{Items: []model.StorageRecord{}, Total: 0}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/records?status=deleted", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		env.records.AssertExpectations(t)
	})

	t.Run("tenant from header", func(t *testing.T) {
		env := newTestEnv(t)
		env.records.On("List", mock.Anything, 10, 0, mock.MatchedBy(func(v model.Identity) bool {
			return v.Tenant == "7"
		}), (*model.Status)(nil)).
			Return(&service.RecordListResult{Items: []model.StorageRecord{}, Total: 0}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/records", nil)
		req.Header.Set("X-Tenant-ID", "7")
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		env.records.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodGet, "/records?limit=abc", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		env := newTestEnv(t)
		env.records.On("List", mock.Anything, 10, 0, mock.Anything, (*model.Status)(nil)).
			Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/records", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		env.records.AssertExpectations(t)
	})
}

func TestGetRecord(t *testing.T) {
	t.Run("public record resolves to object url", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New().String()
		rec := &model.StorageRecord{
			ID:       id,
			Access:   model.AccessPublicRead,
			FilePath: "product/42/",
			FileName: "photo.jpg",
		}
		env.records.On("Get", mock.Anything, id, mock.Anything).Return(rec, nil).Once()
		env.store.On("PublicURL", "product/42/photo.jpg").
			Return("http://minio:9000/files/product/42/photo.jpg").Once()

		req := httptest.NewRequest(http.MethodGet, "/records/"+id, nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]string
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result["id"])
		assert.Equal(t, "http://minio:9000/files/product/42/photo.jpg", result["src"])
		env.records.AssertExpectations(t)
		env.store.AssertExpectations(t)
	})

	t.Run("private record resolves to token url", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New().String()
		rec := &model.StorageRecord{ID: id, Access: model.AccessPrivate, FilePath: "doc/1/", FileName: "a.pdf"}
		env.records.On("Get", mock.Anything, id, mock.Anything).Return(rec, nil).Once()
		env.tokens.On("Issue", mock.Anything, rec, mock.Anything).Return("Tok123", nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/records/"+id, nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]string
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Contains(t, result["src"], "/storage/file?token=Tok123")
		env.tokens.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New().String()
		env.records.On("Get", mock.Anything, id, mock.Anything).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/records/"+id, nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid id", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodGet, "/records/invalid-uuid", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})
}

func TestDeleteRecord(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New().String()
		env.records.On("Delete", mock.Anything, id, mock.Anything).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/records/"+id, nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		env.records.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New().String()
		env.records.On("Delete", mock.Anything, id, mock.Anything).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/records/"+id, nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRestoreRecord(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New().String()
	env.records.On("Restore", mock.Anything, id, mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/records/"+id+"/restore", nil)
	resp, _ := env.app.Test(req)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	env.records.AssertExpectations(t)
}

func TestUsage(t *testing.T) {
	env := newTestEnv(t)
	env.records.On("Usage", mock.Anything).Return(&service.UsageResult{
		Total:          2048,
		TotalFormatted: "2 KB",
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	resp, _ := env.app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result service.UsageResult
	json.NewDecoder(resp.Body).Decode(&result)
	assert.Equal(t, int64(2048), result.Total)
	env.records.AssertExpectations(t)
}

func TestAttachFiles(t *testing.T) {
	t.Run("single file attach", func(t *testing.T) {
		env := newTestEnv(t)

		env.repo.On("FindActiveByOwner", mock.Anything, model.OwnerRef{Class: "product", ID: "42"}, "photo").
			Return([]model.StorageRecord{}, nil).Once()
		env.repo.On("Create", mock.Anything, mock.MatchedBy(func(rec *model.StorageRecord) bool {
			return rec.OwnerClass == "product" && rec.OwnerID == "42" && rec.Attribute == "photo" &&
				rec.Status == model.StatusActive
		})).Return(func(ctx context.Context, rec *model.StorageRecord) *model.StorageRecord {
			return rec
		}, nil).Once()

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, _ := writer.CreateFormFile("file", "photo.jpg")
		part.Write([]byte("jpeg-bytes"))
		writer.WriteField("attribute", "photo")
		writer.WriteField("access", "public")
		writer.Close()

		env.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/owners/product/42/files", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		env.store.AssertExpectations(t)
	})

	t.Run("missing attribute", func(t *testing.T) {
		env := newTestEnv(t)
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		writer.Close()

		req := httptest.NewRequest(http.MethodPost, "/owners/product/42/files", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "ATTRIBUTE_REQUIRED", res.Error.Code)
	})
}

func TestDownloadEndpoint(t *testing.T) {
	t.Run("valid token streams object", func(t *testing.T) {
		env := newTestEnv(t)
		rec := &model.StorageRecord{
			ID:       uuid.New().String(),
			FilePath: "doc/1/",
			FileName: "report.pdf",
			MimeType: "application/pdf",
		}
		env.tokens.On("Validate", mock.Anything, "Tok123", mock.Anything).Return(rec, nil).Once()
		env.store.On("Get", mock.Anything, "doc/1/report.pdf").
			Return(io.NopCloser(bytes.NewReader([]byte("pdf-bytes"))), storage.ObjectInfo{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/storage/file?token=Tok123", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

		content, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "pdf-bytes", string(content))
		env.tokens.AssertExpectations(t)
		env.store.AssertExpectations(t)
	})

	t.Run("inline disposition", func(t *testing.T) {
		env := newTestEnv(t)
		rec := &model.StorageRecord{FilePath: "doc/1/", FileName: "a.png", MimeType: "image/png"}
		env.tokens.On("Validate", mock.Anything, "Tok456", mock.Anything).Return(rec, nil).Once()
		env.store.On("Get", mock.Anything, "doc/1/a.png").
			Return(io.NopCloser(bytes.NewReader([]byte("png"))), storage.ObjectInfo{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/storage/file?token=Tok456&inline=true", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "inline")
	})

	t.Run("invalid token is uniform not found", func(t *testing.T) {
		env := newTestEnv(t)
		env.tokens.On("Validate", mock.Anything, "bad", mock.Anything).
			Return(nil, service.ErrTokenInvalid).Once()

		req := httptest.NewRequest(http.MethodGet, "/storage/file?token=bad", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})
}

func TestRouting(t *testing.T) {
	env := newTestEnv(t)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := env.app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})
}
