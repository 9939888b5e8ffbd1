package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"attachstore/internal/model"
	"attachstore/internal/repository"
	"attachstore/internal/storage"
	"attachstore/internal/transform"
)

// File is a pending file payload: raw upload bytes (or bytes fetched from a
// source URL) that staging has resolved but materialization has not yet
// turned into a StorageRecord.
type File struct {
	Name      string
	Content   []byte
	Size      int64
	MimeType  string
	SourceURL string

	staged bool
}

// NewFileFromPath builds a pending payload from a file on local disk,
// sniffing the MIME type from the content.
func NewFileFromPath(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &File{
		Name:     filepath.Base(path),
		Content:  content,
		Size:     int64(len(content)),
		MimeType: http.DetectContentType(content),
	}, nil
}

// NameFunc produces the stored file name for one staged file.
type NameFunc func(owner *Owner, attribute string, f *File) string

// SharedWithFunc produces the tenant set new records are shared with.
type SharedWithFunc func(owner *Owner) []string

// PathFunc produces the storage key prefix for an owner; the result must end
// with "/".
type PathFunc func(owner *Owner) string

// Binding exposes one owner attribute to the orchestrator through explicit
// accessors instead of reflection. Get returns the attribute's current raw
// value; Set replaces it.
type Binding struct {
	Get func() any
	Set func(v any)
}

// Owner is the attaching entity as the orchestrator sees it: a descriptor,
// the current save trigger, and accessor bindings for declared attributes.
// Ref.ID may be empty until the owner has committed.
type Owner struct {
	Ref      model.OwnerRef
	Mode     string
	Bindings map[string]Binding
}

// AttributeSpec configures one attachment point on the owner.
type AttributeSpec struct {
	// Name is the logical slot on the owner; must have a Binding.
	Name string
	// Access is the access level stamped on new records.
	Access model.Access
	// Modes limits processing to these save triggers; empty means every save.
	Modes []string
	// SupersedePrevious soft-deletes prior Active records on this
	// single-valued attribute when a replacement file materializes.
	SupersedePrevious bool
	// FileName overrides the default random-name strategy.
	FileName NameFunc
	// SharedWith produces the tenant visibility set for new records.
	SharedWith SharedWithFunc
	// Transform rewrites staged content when the file's MIME type is in
	// TransformMimeTypes. A transform error fails staging loudly.
	Transform          transform.Transformer
	TransformMimeTypes []string
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	Attributes []AttributeSpec
	// Path builds the storage key prefix; nil uses "<class>/<id>/".
	Path PathFunc
	// BasePath, when set, prefixes every generated key.
	BasePath string
}

// Orchestrator drives the two-phase attach protocol: Stage resolves and
// transforms raw attribute input before the owner commits; Materialize
// persists StorageRecords, uploads bytes and supersedes prior files after
// the owner has a durable id.
type Orchestrator struct {
	store   storage.ObjectStore
	records repository.RecordRepository
	fetcher *Fetcher
	cfg     OrchestratorConfig
}

// NewOrchestrator validates the attribute configuration and builds an
// Orchestrator. Configuration problems (no attributes, duplicates, unknown
// access level) are fatal here, not at save time.
func NewOrchestrator(store storage.ObjectStore, records repository.RecordRepository, fetcher *Fetcher, cfg OrchestratorConfig) (*Orchestrator, error) {
	if len(cfg.Attributes) == 0 {
		return nil, errors.New("orchestrator: attributes must be set")
	}
	seen := make(map[string]bool, len(cfg.Attributes))
	for _, spec := range cfg.Attributes {
		if spec.Name == "" {
			return nil, errors.New("orchestrator: attribute name must not be empty")
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("orchestrator: duplicate attribute %q", spec.Name)
		}
		seen[spec.Name] = true
		if !spec.Access.Valid() {
			return nil, fmt.Errorf("orchestrator: attribute %q has unknown access level %d", spec.Name, spec.Access)
		}
	}
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	return &Orchestrator{store: store, records: records, fetcher: fetcher, cfg: cfg}, nil
}

// Stage resolves each triggered attribute's raw input into pending file
// payloads: source URLs are fetched (failures drop the entry, they are not
// errors), matching MIME types are transformed, and names are generated.
// Staging performs no durable writes and may be retried before commit.
func (o *Orchestrator) Stage(ctx context.Context, owner *Owner) error {
	for i := range o.cfg.Attributes {
		spec := &o.cfg.Attributes[i]
		if !spec.triggered(owner.Mode) {
			continue
		}
		b, ok := owner.Bindings[spec.Name]
		if !ok {
			return fmt.Errorf("orchestrator: no binding for attribute %q", spec.Name)
		}

		files, single := o.resolve(ctx, b.Get())
		if len(files) == 0 {
			continue
		}

		for _, f := range files {
			if err := o.stageFile(owner, spec, f); err != nil {
				return err
			}
		}

		if single {
			b.Set(files[0])
		} else {
			b.Set(files)
		}
	}
	return nil
}

func (o *Orchestrator) stageFile(owner *Owner, spec *AttributeSpec, f *File) error {
	if f.staged {
		return nil
	}
	if spec.Transform != nil && mimeAllowed(spec.TransformMimeTypes, f.MimeType) {
		res, err := spec.Transform.Transform(f.Content, f.MimeType)
		if err != nil {
			return fmt.Errorf("transform %q on %q: %w", spec.Name, f.Name, err)
		}
		f.Content = res.Content
		f.Size = int64(len(res.Content))
		f.Name += res.Suffix
		f.MimeType = res.MimeType
	}
	if spec.FileName != nil {
		f.Name = spec.FileName(owner, spec.Name, f)
	} else {
		f.Name = randomFileName(f.Name)
	}
	f.staged = true
	return nil
}

// resolve turns an attribute's raw value into pending payloads. Inputs other
// than file payloads, URL strings or slices of either contribute nothing.
func (o *Orchestrator) resolve(ctx context.Context, raw any) ([]*File, bool) {
	switch v := raw.(type) {
	case *File:
		return []*File{v}, true
	case string:
		if !IsURL(v) {
			return nil, true
		}
		f, err := o.fetcher.Fetch(ctx, v)
		if err != nil {
			// unreachable locator: contributes zero files
			return nil, true
		}
		return []*File{f}, true
	case []*File:
		return v, false
	case []string:
		out := make([]*File, 0, len(v))
		for _, s := range v {
			if !IsURL(s) {
				continue
			}
			if f, err := o.fetcher.Fetch(ctx, s); err == nil {
				out = append(out, f)
			}
		}
		return out, false
	case []any:
		out := make([]*File, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case *File:
				out = append(out, it)
			case string:
				if !IsURL(it) {
					continue
				}
				if f, err := o.fetcher.Fetch(ctx, it); err == nil {
					out = append(out, f)
				}
			}
		}
		return out, false
	default:
		return nil, false
	}
}

type queuedUpload struct {
	record *model.StorageRecord
	file   *File
}

// Materialize runs after the owner entity has committed. Per attribute it
// persists new Active records, rewrites the owner's scalar value, then
// uploads every queued file and finally soft-deletes superseded records.
// The first upload failure aborts the batch with ErrUploadFailed; persisted
// rows are not rolled back.
func (o *Orchestrator) Materialize(ctx context.Context, owner *Owner, actor model.Identity) ([]*model.StorageRecord, error) {
	if owner.Ref.ID == "" {
		return nil, ErrOwnerNotPersisted
	}

	var (
		queue         []queuedUpload
		pendingDelete []model.StorageRecord
		created       []*model.StorageRecord
	)

	for i := range o.cfg.Attributes {
		spec := &o.cfg.Attributes[i]
		if !spec.triggered(owner.Mode) {
			continue
		}
		b, ok := owner.Bindings[spec.Name]
		if !ok {
			return nil, fmt.Errorf("orchestrator: no binding for attribute %q", spec.Name)
		}

		switch v := b.Get().(type) {
		case *File:
			if spec.SupersedePrevious {
				old, err := o.records.FindActiveByOwner(ctx, owner.Ref, spec.Name)
				if err != nil {
					return nil, fmt.Errorf("collect superseded records: %w", err)
				}
				pendingDelete = append(pendingDelete, old...)
			}
			rec, err := o.persistRecord(ctx, owner, spec, v, actor)
			if err != nil {
				return nil, err
			}
			b.Set(rec.FileName)
			queue = append(queue, queuedUpload{record: rec, file: v})
			created = append(created, rec)

		case []*File:
			for _, f := range v {
				rec, err := o.persistRecord(ctx, owner, spec, f, actor)
				if err != nil {
					return nil, err
				}
				queue = append(queue, queuedUpload{record: rec, file: f})
				created = append(created, rec)
			}
			// multi-file attributes are read back via query, not the scalar
			b.Set(nil)
		}
	}

	for _, q := range queue {
		_, err := o.store.Put(ctx, q.record.Key(), bytes.NewReader(q.file.Content), storage.PutObjectOptions{
			Size:        q.file.Size,
			ContentType: q.record.MimeType,
			ACL:         q.record.Access.ACL(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUploadFailed, q.record.Key(), err)
		}
	}

	for i := range pendingDelete {
		old := &pendingDelete[i]
		if err := o.records.MarkDeleted(ctx, old.ID, actor.UserID); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", ErrDeleteFailed, old.ID, err)
		}
		if err := o.store.Delete(ctx, old.Key()); err != nil {
			return nil, fmt.Errorf("%w: object %s: %v", ErrDeleteFailed, old.Key(), err)
		}
	}

	return created, nil
}

func (o *Orchestrator) persistRecord(ctx context.Context, owner *Owner, spec *AttributeSpec, f *File, actor model.Identity) (*model.StorageRecord, error) {
	var shared []string
	if spec.SharedWith != nil {
		shared = spec.SharedWith(owner)
	}
	now := time.Now().UTC()
	rec := &model.StorageRecord{
		ID:         uuid.New().String(),
		Access:     spec.Access,
		OwnerClass: owner.Ref.Class,
		OwnerID:    owner.Ref.ID,
		Attribute:  spec.Name,
		FilePath:   o.filePath(owner),
		FileName:   f.Name,
		Size:       f.Size,
		MimeType:   f.MimeType,
		Status:     model.StatusActive,
		Tenant:     actor.Tenant,
		SharedWith: shared,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  actor.UserID,
		UpdatedBy:  actor.UserID,
	}
	stored, err := o.records.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("persist record for %q: %w", spec.Name, err)
	}
	return stored, nil
}

func (o *Orchestrator) filePath(owner *Owner) string {
	var p string
	if o.cfg.Path != nil {
		p = o.cfg.Path(owner)
	} else {
		p = owner.Ref.Class + "/" + owner.Ref.ID + "/"
	}
	if o.cfg.BasePath != "" {
		p = o.cfg.BasePath + "/" + p
	}
	return p
}

func (s *AttributeSpec) triggered(mode string) bool {
	if len(s.Modes) == 0 {
		return true
	}
	for _, m := range s.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func mimeAllowed(allow []string, mime string) bool {
	for _, m := range allow {
		if m == mime {
			return true
		}
	}
	return false
}

func randomFileName(original string) string {
	return uuid.New().String() + filepath.Ext(original)
}
