package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"attachstore/internal/config"
	"attachstore/internal/model"
	"attachstore/internal/storage"
)

// DownloadPath is the resource-local endpoint private record URLs point at.
const DownloadPath = "/storage/file"

// URLResolver turns a StorageRecord into something a caller can fetch:
// the stable public URL for PublicRead records, or a token-carrying
// download-endpoint URL for Private ones.
type URLResolver struct {
	store        storage.ObjectStore
	tokens       TokenService
	appHost      string
	endpoint     string
	bucket       string
	bucketDomain string
}

// NewURLResolver constructs a URLResolver.
func NewURLResolver(store storage.ObjectStore, tokens TokenService, appHost string, minioCfg config.MinIOConfig, storageCfg config.StorageConfig) *URLResolver {
	return &URLResolver{
		store:        store,
		tokens:       tokens,
		appHost:      appHost,
		endpoint:     minioCfg.Endpoint,
		bucket:       minioCfg.Bucket,
		bucketDomain: storageCfg.BucketDomain,
	}
}

// Resolve returns the URL granting the viewer access to the record. Private
// records mint (or refresh) an access token bound to the viewer.
func (r *URLResolver) Resolve(ctx context.Context, rec *model.StorageRecord, viewer model.Identity) (string, error) {
	switch rec.Access {
	case model.AccessPublicRead:
		return r.PublicURL(rec), nil
	case model.AccessPrivate:
		token, err := r.tokens.Issue(ctx, rec, viewer)
		if err != nil {
			return "", fmt.Errorf("issue token: %w", err)
		}
		return fmt.Sprintf("http://%s%s?token=%s", r.appHost, DownloadPath, url.QueryEscape(token)), nil
	default:
		return "", fmt.Errorf("record %s has unknown access level %d", rec.ID, rec.Access)
	}
}

// PublicURL returns the stable URL for a public record, with the vanity
// domain substituted for the endpoint/bucket host part when configured.
// No side effects: the result depends only on bucket, key and configuration.
func (r *URLResolver) PublicURL(rec *model.StorageRecord) string {
	u := r.store.PublicURL(rec.Key())
	if r.bucketDomain != "" {
		u = strings.Replace(u, r.endpoint+"/"+r.bucket, r.bucketDomain, 1)
	}
	return u
}

// PresignURL returns a time-limited signed object URL as an alternative
// private access path that bypasses the download endpoint.
func (r *URLResolver) PresignURL(ctx context.Context, rec *model.StorageRecord, ttl time.Duration) (string, error) {
	return r.store.PresignGet(ctx, rec.Key(), ttl)
}
