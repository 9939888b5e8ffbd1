package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"attachstore/internal/model"
	"attachstore/internal/repository"
)

// RecordPostgres is a PostgreSQL implementation of repository.RecordRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type RecordPostgres struct {
	db *sql.DB
}

// NewRecordPostgres creates a new RecordPostgres repository.
func NewRecordPostgres(db *sql.DB) *RecordPostgres {
	return &RecordPostgres{db: db}
}

var _ repository.RecordRepository = (*RecordPostgres)(nil)

const recordColumns = `id, access, owner_class, owner_id, attribute, file_path, file_name,
		size, mime_type, status, tenant, shared_with, created_at, updated_at, created_by, updated_by`

func scanRecord(row interface{ Scan(...any) error }) (*model.StorageRecord, error) {
	var (
		rec    model.StorageRecord
		shared []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Access,
		&rec.OwnerClass,
		&rec.OwnerID,
		&rec.Attribute,
		&rec.FilePath,
		&rec.FileName,
		&rec.Size,
		&rec.MimeType,
		&rec.Status,
		&rec.Tenant,
		&shared,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.CreatedBy,
		&rec.UpdatedBy,
	); err != nil {
		return nil, err
	}
	if len(shared) > 0 {
		if err := json.Unmarshal(shared, &rec.SharedWith); err != nil {
			return nil, fmt.Errorf("decode shared_with: %w", err)
		}
	}
	return &rec, nil
}

// Create inserts a new record row and returns the stored record.
func (r *RecordPostgres) Create(ctx context.Context, rec *model.StorageRecord) (*model.StorageRecord, error) {
	shared, err := json.Marshal(sharedOrEmpty(rec.SharedWith))
	if err != nil {
		return nil, fmt.Errorf("encode shared_with: %w", err)
	}
	q := `
		INSERT INTO storage_records (id, access, owner_class, owner_id, attribute, file_path, file_name,
			size, mime_type, status, tenant, shared_with, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + recordColumns
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.Access,
		rec.OwnerClass,
		rec.OwnerID,
		rec.Attribute,
		rec.FilePath,
		rec.FileName,
		rec.Size,
		rec.MimeType,
		rec.Status,
		rec.Tenant,
		shared,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CreatedBy,
		rec.UpdatedBy,
	)
	return scanRecord(row)
}

// FindByID fetches a single Active record by its ID.
func (r *RecordPostgres) FindByID(ctx context.Context, id string) (*model.StorageRecord, error) {
	q := `
		SELECT ` + recordColumns + `
		FROM storage_records
		WHERE id = $1 AND status = $2
	`
	return scanRecord(r.db.QueryRowContext(ctx, q, id, model.StatusActive))
}

// FindActiveByOwner returns the Active records for one owner+attribute, newest first.
func (r *RecordPostgres) FindActiveByOwner(ctx context.Context, owner model.OwnerRef, attribute string) ([]model.StorageRecord, error) {
	q := `
		SELECT ` + recordColumns + `
		FROM storage_records
		WHERE owner_class = $1 AND owner_id = $2 AND attribute = $3 AND status = $4
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, owner.Class, owner.ID, attribute, model.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// List returns records using LIMIT/OFFSET pagination and a total count.
// A set Tenant applies the cross-tenant visibility rule in SQL.
func (r *RecordPostgres) List(ctx context.Context, q repository.RecordQuery) (*repository.PageResult[model.StorageRecord], error) {
	status := model.StatusActive
	if q.Status != nil {
		status = *q.Status
	}

	where := `WHERE status = $1`
	args := []any{status}
	if q.Tenant != "" {
		where += ` AND (tenant = $2 OR shared_with @> jsonb_build_array($2::text) OR shared_with @> '["*"]'::jsonb)`
		args = append(args, q.Tenant)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM storage_records `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := `
		SELECT ` + recordColumns + `
		FROM storage_records ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	args = append(args, q.Page.Limit, q.Page.Offset)

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.StorageRecord]{Items: items, Total: total}, nil
}

// MarkDeleted soft-deletes a record. Missing rows surface as sql.ErrNoRows.
func (r *RecordPostgres) MarkDeleted(ctx context.Context, id, updatedBy string) error {
	return r.setStatus(ctx, id, updatedBy, model.StatusActive, model.StatusDeleted)
}

// Restore flips a Deleted record back to Active.
func (r *RecordPostgres) Restore(ctx context.Context, id, updatedBy string) error {
	return r.setStatus(ctx, id, updatedBy, model.StatusDeleted, model.StatusActive)
}

func (r *RecordPostgres) setStatus(ctx context.Context, id, updatedBy string, from, to model.Status) error {
	const q = `
		UPDATE storage_records
		SET status = $1, updated_at = $2, updated_by = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, q, to, time.Now().UTC(), updatedBy, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TotalUsage sums the size of all Active records.
func (r *RecordPostgres) TotalUsage(ctx context.Context) (int64, error) {
	const q = `SELECT COALESCE(SUM(size), 0) FROM storage_records WHERE status = $1`
	var total int64
	if err := r.db.QueryRowContext(ctx, q, model.StatusActive).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// UsageByOwnerClass sums Active record sizes grouped by owner class.
func (r *RecordPostgres) UsageByOwnerClass(ctx context.Context) ([]repository.UsageRow, error) {
	const q = `
		SELECT owner_class, COALESCE(SUM(size), 0)
		FROM storage_records
		WHERE status = $1
		GROUP BY owner_class
		ORDER BY owner_class
	`
	rows, err := r.db.QueryContext(ctx, q, model.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.UsageRow, 0)
	for rows.Next() {
		var u repository.UsageRow
		if err := rows.Scan(&u.OwnerClass, &u.Size); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func collectRecords(rows *sql.Rows) ([]model.StorageRecord, error) {
	items := make([]model.StorageRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func sharedOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
