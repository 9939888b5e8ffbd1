package repository

import (
	"context"

	"attachstore/internal/model"
)

// RecordQuery filters a record listing. Tenant, when set, applies the
// cross-tenant visibility rule: rows created by another tenant are returned
// only when their shared_with contains the tenant or the wildcard.
// Status defaults to Active; deleted rows require an explicit filter.
type RecordQuery struct {
	Page   PageQuery
	Tenant string
	Status *model.Status
}

// UsageRow is one line of the per-owner-class storage usage breakdown.
type UsageRow struct {
	OwnerClass string `json:"owner_class"`
	Size       int64  `json:"size"`
}

// RecordRepository defines data access for storage records using SQL queries
// only. No business logic here — strictly persistence operations. Every
// default query path excludes soft-deleted rows.
type RecordRepository interface {
	// Create inserts a new record row and returns the stored record.
	Create(ctx context.Context, rec *model.StorageRecord) (*model.StorageRecord, error)

	// FindByID returns an Active record by its ID.
	FindByID(ctx context.Context, id string) (*model.StorageRecord, error)

	// FindActiveByOwner returns the Active records attached to one
	// owner+attribute slot, newest first.
	FindActiveByOwner(ctx context.Context, owner model.OwnerRef, attribute string) ([]model.StorageRecord, error)

	// List returns a page of records matching the query and a total count.
	List(ctx context.Context, q RecordQuery) (*PageResult[model.StorageRecord], error)

	// MarkDeleted flips a record's status to Deleted. The row is retained
	// for audit; it never reappears in default queries.
	MarkDeleted(ctx context.Context, id, updatedBy string) error

	// Restore flips a Deleted record's status back to Active. It does not
	// re-create object-store bytes.
	Restore(ctx context.Context, id, updatedBy string) error

	// TotalUsage sums the size of all Active records.
	TotalUsage(ctx context.Context) (int64, error)

	// UsageByOwnerClass sums Active record sizes grouped by owner class.
	UsageByOwnerClass(ctx context.Context) ([]UsageRow, error)
}
