package stashbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

// TokenRepo reads access tokens and counts their use.
type TokenRepo interface {
	// Get returns the token with the given value, or ErrNotFound.
	Get(ctx context.Context, value string) (AccessToken, error)
	// IncrementUsage adds one to the token's usage counter.
	IncrementUsage(ctx context.Context, value string) error
}

// ObjectRepo persists StoredObject records.
type ObjectRepo interface {
	// Create inserts a new record.
	Create(ctx context.Context, obj StoredObject) error
	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (StoredObject, error)
	// Existing reports which of ids have a record.
	Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

// ViewRepo persists ViewEvent records.
type ViewRepo interface {
	Record(ctx context.Context, ev ViewEvent) error
}

// FileStorage defines the interface for physical file storage operations.
// Implementations can use the local filesystem, S3-compatible object
// storage, or any other backend.
//
// All methods accept a context for cancellation. Implementations must stop
// long-running copies when the context ends.
type FileStorage interface {
	// Open returns the file at path for reading, with its size and
	// modification time. Returns ErrNotFound if the file does not exist.
	// The caller closes Blob.Content.
	Open(ctx context.Context, path string) (Blob, error)

	// Write stores content at path. A failed or cancelled write must not
	// leave anything at path.
	Write(ctx context.Context, path string, content io.Reader) (SaveResult, error)

	// Delete removes the file at path. Returns ErrNotFound if the file does
	// not exist.
	Delete(ctx context.Context, path string) error

	// List returns every stored file. Temporary files of in-flight writes
	// are not included.
	List(ctx context.Context) ([]StorageEntry, error)
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	// CleanupTimeout bounds removal of a stored file whose record could not
	// be written (default: 30s).
	CleanupTimeout time.Duration
	// TelemetryTimeout bounds background view and usage writes (default: 10s).
	TelemetryTimeout time.Duration
	// Hooks are notified of recorded uploads and views.
	Hooks Hooks
}

// Hooks receives completed pipeline steps. Nil fields are skipped. Hooks
// run on the goroutine that finished the step and must not block.
type Hooks struct {
	// Uploaded is called once an upload's record has been written.
	Uploaded func(obj StoredObject)
	// Viewed is called once a view event has been stored.
	Viewed func(ev ViewEvent)
}

// MinOrphanAge is the youngest a file may be for CleanupOrphans to remove
// it. Younger files may belong to uploads whose record is still being
// written.
const MinOrphanAge = time.Minute

// Service runs the upload and download pipelines.
type Service struct {
	tokens  TokenRepo
	objects ObjectRepo
	views   ViewRepo
	storage FileStorage

	cleanupTimeout   time.Duration
	telemetryTimeout time.Duration

	hooks Hooks

	background conc.WaitGroup
	now        func() time.Time
}

func NewService(tokens TokenRepo, objects ObjectRepo, views ViewRepo, storage FileStorage, cfg ServiceConfig) (*Service, error) {
	if tokens == nil || objects == nil || views == nil || storage == nil {
		return nil, errors.New("new service: repositories and storage are required")
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	telemetryTimeout := cfg.TelemetryTimeout
	if telemetryTimeout <= 0 {
		telemetryTimeout = 10 * time.Second
	}

	return &Service{
		tokens:           tokens,
		objects:          objects,
		views:            views,
		storage:          storage,
		cleanupTimeout:   cleanupTimeout,
		telemetryTimeout: telemetryTimeout,
		hooks:            cfg.Hooks,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

// Authorize resolves a token value to a usable AccessToken. Malformed,
// unknown and revoked tokens all fail with ErrUnauthorized; malformed
// values are rejected without a database lookup.
func (s *Service) Authorize(ctx context.Context, value string) (AccessToken, error) {
	if !IsValidToken(value) {
		return AccessToken{}, fmt.Errorf("authorize: malformed token: %w", ErrUnauthorized)
	}

	tok, err := s.tokens.Get(ctx, strings.ToLower(value))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AccessToken{}, fmt.Errorf("authorize: unknown token: %w", ErrUnauthorized)
		}
		return AccessToken{}, fmt.Errorf("authorize: %w", err)
	}

	if tok.Revoked {
		return AccessToken{}, fmt.Errorf("authorize: revoked token: %w", ErrUnauthorized)
	}

	return tok, nil
}

// Upload streams up.Content into storage under a fresh identifier and
// records it for the token's user.
//
// The record is written only after storage reports a complete write, so a
// record never points at a partial file. If the record cannot be written
// the stored file is removed on a background context bounded by the
// cleanup timeout; files left behind by a failed removal are swept by
// CleanupOrphans. The token usage counter is incremented in the
// background after success and its failures are only logged.
func (s *Service) Upload(ctx context.Context, tok AccessToken, up Upload) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, fmt.Errorf("upload: %w", err)
	}

	if up.Content == nil {
		return StoredObject{}, fmt.Errorf("upload: %w: content is required", ErrInvalidInput)
	}

	id := uuid.New()
	name := ObjectName(id, Extension(up.Filename))

	br := bufio.NewReaderSize(up.Content, sniffLen)
	head, _ := br.Peek(sniffLen)
	mimeType := DetectMimeType(up.Filename, head)

	saved, err := s.storage.Write(ctx, name, br)
	if err != nil {
		return StoredObject{}, fmt.Errorf("upload %s: %w: %w", name, ErrStorage, err)
	}

	obj := StoredObject{
		ID:        id,
		Path:      name,
		URL:       ObjectURL(up.BaseURL, name),
		UserID:    tok.UserID,
		Filename:  up.Filename,
		MimeType:  mimeType,
		SizeBytes: saved.BytesWritten,
		ETag:      saved.Etag,
		CreatedAt: s.now(),
	}

	if err := s.objects.Create(ctx, obj); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, name); delErr != nil {
			slog.Error("failed to remove unrecorded upload", "path", name, "err", delErr)
		}
		return StoredObject{}, fmt.Errorf("upload %s: persist record: %w", name, err)
	}

	if s.hooks.Uploaded != nil {
		s.hooks.Uploaded(obj)
	}

	s.detached(ctx, func(ctx context.Context) {
		if err := s.tokens.IncrementUsage(ctx, tok.Value); err != nil {
			slog.Warn("failed to increment token usage", "user_id", tok.UserID, "err", err)
		}
	})

	return obj, nil
}

// Open resolves a requested name to its record and an open file. Names
// with traversal sequences, malformed names, names whose extension differs
// from the stored one, missing records and missing files all fail with
// ErrNotFound.
func (s *Service) Open(ctx context.Context, name string) (StoredObject, Blob, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, Blob{}, fmt.Errorf("open object: %w", err)
	}

	if HasTraversal(name) {
		return StoredObject{}, Blob{}, fmt.Errorf("open object %q: %w", name, ErrNotFound)
	}

	id, ext, err := ParseObjectName(name)
	if err != nil {
		return StoredObject{}, Blob{}, fmt.Errorf("open object %q: %w", name, ErrNotFound)
	}

	obj, err := s.objects.Get(ctx, id)
	if err != nil {
		return StoredObject{}, Blob{}, fmt.Errorf("open object %s: %w", id, err)
	}

	if ext != "" && !strings.EqualFold(ext, Extension(obj.Path)) {
		return StoredObject{}, Blob{}, fmt.Errorf("open object %q: %w", name, ErrNotFound)
	}

	blob, err := s.storage.Open(ctx, obj.Path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("object record has no stored file", "id", id, "path", obj.Path)
		}
		return StoredObject{}, Blob{}, fmt.Errorf("open object %s: %w", id, err)
	}

	return obj, blob, nil
}

// RecordView stores ev in the background. It returns immediately and never
// fails; errors are logged. A requested name that parses as an object name
// is recorded as its bare id so views join to the object record.
func (s *Service) RecordView(ctx context.Context, ev ViewEvent) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	if id, _, err := ParseObjectName(ev.ObjectID); err == nil {
		ev.ObjectID = id.String()
	}

	s.detached(ctx, func(ctx context.Context) {
		if err := s.views.Record(ctx, ev); err != nil {
			slog.Warn("failed to record view", "object_id", ev.ObjectID, "err", err)
			return
		}
		if s.hooks.Viewed != nil {
			s.hooks.Viewed(ev)
		}
	})
}

// CleanupOrphans deletes stored files that have no record and are older
// than olderThan, which must be at least MinOrphanAge. It returns the
// number of files removed.
func (s *Service) CleanupOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan < MinOrphanAge {
		return 0, fmt.Errorf("cleanup orphans: %w: age %s is below the %s minimum", ErrInvalidInput, olderThan, MinOrphanAge)
	}

	entries, err := s.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphans: %w", err)
	}

	cutoff := s.now().Add(-olderThan)

	candidates := make(map[uuid.UUID][]string)
	var ids []uuid.UUID
	for _, e := range entries {
		if e.ModTime.After(cutoff) {
			continue
		}
		id, _, err := ParseObjectName(e.Path)
		if err != nil {
			continue
		}
		if _, ok := candidates[id]; !ok {
			ids = append(ids, id)
		}
		candidates[id] = append(candidates[id], e.Path)
	}

	const batchSize = 100
	removed := 0
	for start := 0; start < len(ids); start += batchSize {
		batch := ids[start:min(start+batchSize, len(ids))]

		existing, err := s.objects.Existing(ctx, batch)
		if err != nil {
			return removed, fmt.Errorf("cleanup orphans: %w", err)
		}

		for _, id := range batch {
			if existing[id] {
				continue
			}
			for _, p := range candidates[id] {
				if err := s.storage.Delete(ctx, p); err != nil && !errors.Is(err, ErrNotFound) {
					return removed, fmt.Errorf("cleanup orphans %s: %w", p, err)
				}
				slog.Info("removed orphaned file", "path", p)
				removed++
			}
		}
	}

	return removed, nil
}

// Close waits for background telemetry writes to finish.
func (s *Service) Close() {
	if r := s.background.WaitAndRecover(); r != nil {
		slog.Error("background task panicked", "panic", r.Value, "stack", string(r.Stack))
	}
}

// detached runs fn in the background on a context that survives the
// request but is bounded by the telemetry timeout.
func (s *Service) detached(ctx context.Context, fn func(ctx context.Context)) {
	base := context.WithoutCancel(ctx)
	s.background.Go(func() {
		ctx, cancel := context.WithTimeout(base, s.telemetryTimeout)
		defer cancel()
		fn(ctx)
	})
}
