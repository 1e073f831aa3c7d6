// Package registry keeps a bounded, deduplicated history of uploaded
// versions per application and tracks which one is current.
//
// State for an application lives in three places of the Store:
//
//	{appId}          list of version keys, most recent first
//	{appId}:{key}    payload uploaded for key
//	{appId}:current  key of the active version
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/go-logr/logr"

	"github.com/zerverless/versionindex/internal/logging"
	"github.com/zerverless/versionindex/internal/revision"
	"github.com/zerverless/versionindex/internal/store"
)

const (
	DefaultAppID        = "default"
	DefaultVersionCount = 15
)

// Options configures a Registry. Connection is required even when Client
// is injected.
type Options struct {
	Connection   *store.Connection
	AppID        string
	VersionCount int
	Client       store.Store
	Revision     revision.Source
	Logger       logr.Logger
}

// Version is one entry of ListVersions.
type Version struct {
	SHA1 string `json:"sha1"`
}

type Registry struct {
	appID        string
	versionCount int
	client       store.Store
	revision     revision.Source
	logger       logr.Logger

	// closer is set only when the registry opened the store itself.
	closer io.Closer
}

func New(opts Options) (*Registry, error) {
	if opts.Connection == nil {
		return nil, &ConfigError{Field: "connection"}
	}

	r := &Registry{
		appID:        opts.AppID,
		versionCount: opts.VersionCount,
		client:       opts.Client,
		revision:     opts.Revision,
		logger:       opts.Logger,
	}
	if r.appID == "" {
		r.appID = DefaultAppID
	}
	if r.versionCount <= 0 {
		r.versionCount = DefaultVersionCount
	}
	if r.revision == nil {
		r.revision = revision.Git{Path: "."}
	}
	if r.logger.GetSink() == nil {
		r.logger = logr.Discard()
	}
	r.logger = r.logger.WithValues("appId", r.appID)

	if r.client == nil {
		client, err := store.Open(*opts.Connection)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		r.client = client
		if c, ok := client.(io.Closer); ok {
			r.closer = c
		}
	}

	return r, nil
}

func (r *Registry) AppID() string { return r.appID }

func (r *Registry) VersionCount() int { return r.versionCount }

func (r *Registry) Store() store.Store { return r.client }

func (r *Registry) currentKey() string { return r.appID + ":current" }

func (r *Registry) entryKey(key string) string { return r.appID + ":" + key }

// Close releases the store if the registry opened it.
func (r *Registry) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Upload stores payload under the current revision key and records the key
// at the head of the version list, trimming the list to capacity.
func (r *Registry) Upload(ctx context.Context, payload []byte) (string, error) {
	key, err := r.revision.Revision(ctx)
	if err != nil {
		return "", &RevisionUnavailableError{Err: err}
	}

	if err := r.uploadIfNotInVersionList(ctx, key, payload); err != nil {
		return "", err
	}
	if err := r.updateVersionList(ctx, key); err != nil {
		return "", err
	}
	if err := r.trimVersionList(ctx); err != nil {
		return "", err
	}

	r.logger.Info("Uploaded version", "key", key, "bytes", len(payload))
	return key, nil
}

// SetCurrent points the current pointer at key, which must still be retained.
func (r *Registry) SetCurrent(ctx context.Context, key string) error {
	keys, err := r.listVersions(ctx, 0)
	if err != nil {
		return err
	}
	if !slices.Contains(keys, key) {
		return &VersionNotFoundError{Key: key}
	}

	if err := r.client.Set(ctx, r.currentKey(), []byte(key)); err != nil {
		return &StoreError{Op: "set", Err: err}
	}

	r.logger.Info("Activated version", "key", key)
	return nil
}

// ListVersions returns up to count keys, most recent first. count <= 0
// means the configured version count.
func (r *Registry) ListVersions(ctx context.Context, count int) ([]Version, error) {
	keys, err := r.listVersions(ctx, count)
	if err != nil {
		return nil, err
	}

	versions := make([]Version, 0, len(keys))
	for _, key := range keys {
		versions = append(versions, Version{SHA1: key})
	}
	return versions, nil
}

// Current returns the active key, or ErrNoCurrent.
func (r *Registry) Current(ctx context.Context) (string, error) {
	value, err := r.client.Get(ctx, r.currentKey())
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoCurrent
	}
	if err != nil {
		return "", &StoreError{Op: "get", Err: err}
	}
	return string(value), nil
}

// Fetch returns the payload of a retained version.
func (r *Registry) Fetch(ctx context.Context, key string) ([]byte, error) {
	keys, err := r.listVersions(ctx, 0)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(keys, key) {
		return nil, &VersionNotFoundError{Key: key}
	}

	payload, err := r.client.Get(ctx, r.entryKey(key))
	if errors.Is(err, store.ErrNotFound) {
		return nil, &VersionNotFoundError{Key: key}
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return payload, nil
}

func (r *Registry) listVersions(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		count = r.versionCount
	}
	keys, err := r.client.ListRange(ctx, r.appID, 0, int64(count-1))
	if err != nil {
		return nil, &StoreError{Op: "lrange", Err: err}
	}
	return keys, nil
}

func (r *Registry) uploadIfNotInVersionList(ctx context.Context, key string, payload []byte) error {
	keys, err := r.listVersions(ctx, 0)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return &DuplicateVersionError{Key: key}
	}

	if err := r.client.Set(ctx, r.entryKey(key), payload); err != nil {
		return &StoreError{Op: "set", Err: err}
	}
	return nil
}

// updateVersionList repeats the membership check right before the push to
// narrow the window against a concurrent upload of the same key. It does
// not close it.
func (r *Registry) updateVersionList(ctx context.Context, key string) error {
	keys, err := r.listVersions(ctx, 0)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return &DuplicateVersionError{Key: key}
	}

	if _, err := r.client.ListPush(ctx, r.appID, key); err != nil {
		return &StoreError{Op: "lpush", Err: err}
	}
	return nil
}

func (r *Registry) trimVersionList(ctx context.Context) error {
	if err := r.client.ListTrim(ctx, r.appID, 0, int64(r.versionCount-1)); err != nil {
		return &StoreError{Op: "ltrim", Err: err}
	}
	r.logger.V(logging.DEBUG).Info("Trimmed version list", "versionCount", r.versionCount)
	return nil
}
