package service

import "errors"

var (
	// ErrIDRequired is returned when an operation is called with an empty id.
	ErrIDRequired = errors.New("id is required")

	// ErrNotFound is returned when a storage record does not exist or is soft-deleted.
	ErrNotFound = errors.New("storage record not found")

	// ErrOwnerNotPersisted is returned when Materialize runs before the
	// owning entity has a durable identifier.
	ErrOwnerNotPersisted = errors.New("owner has no durable id")

	// ErrTokenInvalid is returned uniformly for missing, expired or
	// identity-mismatched tokens. Causes are deliberately not distinguished.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrUploadFailed marks a failed object-store upload during
	// materialization. Already-persisted metadata rows are not rolled back.
	ErrUploadFailed = errors.New("upload failed")

	// ErrDeleteFailed marks a failed soft-delete of a superseded record or
	// its object-store bytes.
	ErrDeleteFailed = errors.New("delete failed")
)
