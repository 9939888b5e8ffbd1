package model

import (
	"fmt"
	"math"
	"time"
)

// Access controls how a stored file may be read.
type Access int

const (
	AccessPrivate    Access = 1
	AccessPublicRead Access = 2
)

// ACL returns the object-store canned ACL string for this access level.
func (a Access) ACL() string {
	switch a {
	case AccessPrivate:
		return "private"
	case AccessPublicRead:
		return "public-read"
	default:
		return ""
	}
}

// Valid reports whether a is a known access level.
func (a Access) Valid() bool {
	return a == AccessPrivate || a == AccessPublicRead
}

// Status is the soft-delete state of a StorageRecord.
type Status int

const (
	StatusDeleted Status = 0
	StatusActive  Status = 1
)

// SharedWithAll is the wildcard tenant marker: the record is visible to
// every tenant, not only the creating one.
const SharedWithAll = "*"

// OwnerRef identifies the domain entity a file is attached to.
// Class is a free-form model identifier (e.g. "product", "user"); ID is the
// owner's durable primary key. Together with Attribute on the record it forms
// the back-reference from storage to the attaching entity.
type OwnerRef struct {
	Class string
	ID    string
}

// StorageRecord is the persisted metadata row describing one attached file.
// The storage key (FilePath + FileName) is globally unique at the object
// store; once bytes are uploaded the record is immutable — replacement
// creates a new record and soft-deletes this one.
type StorageRecord struct {
	ID         string    `json:"id"`
	Access     Access    `json:"access"`
	OwnerClass string    `json:"owner_class"`
	OwnerID    string    `json:"owner_id"`
	Attribute  string    `json:"attribute"`
	FilePath   string    `json:"file_path"`
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	Status     Status    `json:"status"`
	Tenant     string    `json:"tenant"`
	SharedWith []string  `json:"shared_with"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedBy  string    `json:"created_by,omitempty"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
}

// Key returns the object-store key for this record.
func (r *StorageRecord) Key() string {
	return r.FilePath + r.FileName
}

// Owner returns the owning entity reference.
func (r *StorageRecord) Owner() OwnerRef {
	return OwnerRef{Class: r.OwnerClass, ID: r.OwnerID}
}

// VisibleTo reports whether a tenant may read this record. The creating
// tenant always sees its own rows; other tenants only through SharedWith.
func (r *StorageRecord) VisibleTo(tenant string) bool {
	if tenant == r.Tenant {
		return true
	}
	for _, t := range r.SharedWith {
		if t == SharedWithAll || t == tenant {
			return true
		}
	}
	return false
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders a byte count as a human-readable size.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	v := float64(n) / math.Pow(1024, float64(i))
	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.3g %s", v, byteUnits[i])
}
