package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attachstore/internal/model"
	"attachstore/internal/repository"
	"attachstore/internal/storage"
)

// RecordListResult is the service-level DTO for paginated records.
type RecordListResult struct {
	Items []model.StorageRecord `json:"data"`
	Total int                   `json:"total"`
}

// UsageResult reports stored bytes, total and per owner class.
type UsageResult struct {
	Total          int64                 `json:"total"`
	TotalFormatted string                `json:"total_formatted"`
	ByOwnerClass   []repository.UsageRow `json:"by_owner_class"`
}

// RecordService defines the read/delete/restore use cases for storage
// records, independent of the attach protocol.
type RecordService interface {
	// List returns records visible to the viewer's tenant using
	// limit/offset. A non-nil status overrides the Active-only default.
	List(ctx context.Context, limit, offset int, viewer model.Identity, status *model.Status) (*RecordListResult, error)

	// Get returns a single Active record by its ID, provided the viewer's
	// tenant may see it.
	Get(ctx context.Context, id string, viewer model.Identity) (*model.StorageRecord, error)

	// Delete soft-deletes a record and removes its object-store bytes.
	Delete(ctx context.Context, id string, actor model.Identity) error

	// Restore flips a soft-deleted record back to Active. Bytes are not
	// re-created; re-uploading purged content is the caller's problem.
	Restore(ctx context.Context, id string, actor model.Identity) error

	// Usage reports total and per-owner-class stored bytes.
	Usage(ctx context.Context) (*UsageResult, error)
}

type recordService struct {
	store storage.ObjectStore
	repo  repository.RecordRepository
}

// NewRecordService constructs a RecordService.
func NewRecordService(store storage.ObjectStore, repo repository.RecordRepository) RecordService {
	return &recordService{store: store, repo: repo}
}

func (s *recordService) List(ctx context.Context, limit, offset int, viewer model.Identity, status *model.Status) (*RecordListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.RecordQuery{
		Page:   repository.PageQuery{Limit: limit, Offset: offset},
		Tenant: viewer.Tenant,
		Status: status,
	})
	if err != nil {
		return nil, err
	}
	return &RecordListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *recordService) Get(ctx context.Context, id string, viewer model.Identity) (*model.StorageRecord, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if viewer.Tenant != "" && !rec.VisibleTo(viewer.Tenant) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete soft-deletes the metadata row first, then removes the object.
// A failed object delete surfaces as ErrDeleteFailed; the row stays Deleted.
func (s *recordService) Delete(ctx context.Context, id string, actor model.Identity) error {
	if id == "" {
		return ErrIDRequired
	}
	rec, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.repo.MarkDeleted(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := s.store.Delete(ctx, rec.Key()); err != nil {
		return fmt.Errorf("%w: object %s: %v", ErrDeleteFailed, rec.Key(), err)
	}
	return nil
}

func (s *recordService) Restore(ctx context.Context, id string, actor model.Identity) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.repo.Restore(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *recordService) Usage(ctx context.Context) (*UsageResult, error) {
	total, err := s.repo.TotalUsage(ctx)
	if err != nil {
		return nil, err
	}
	byClass, err := s.repo.UsageByOwnerClass(ctx)
	if err != nil {
		return nil, err
	}
	return &UsageResult{
		Total:          total,
		TotalFormatted: model.FormatBytes(total),
		ByOwnerClass:   byClass,
	}, nil
}
