// Package objectstore provides an S3-compatible storage backend for
// stashbox built on the MinIO client.
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sagarc03/stashbox"
)

const bucketCheckTimeout = 5 * time.Second

const (
	// DefaultPartSize is the multipart chunk used for uploads. Content of
	// unknown length is buffered one part at a time.
	DefaultPartSize = 16 << 20

	// MinPartSize is the smallest part S3 accepts.
	MinPartSize = 5 << 20
)

// ErrBucketMissing is returned by Ping when the bucket is gone.
var ErrBucketMissing = errors.New("bucket does not exist")

// Config holds the S3 endpoint, credentials and bucket.
type Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`

	// Prefix is prepended to every object key.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// PartSize is the multipart chunk size in bytes (default: 16 MiB).
	PartSize uint64 `mapstructure:"part_size" yaml:"part_size"`
}

// Store keeps files as objects in a single bucket.
type Store struct {
	client   *minio.Client
	bucket   string
	prefix   string
	partSize uint64
}

// NewClient creates a MinIO client for cfg. The API port defaults to 9000.
func NewClient(cfg Config) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, ":") {
		endpoint = endpoint + ":9000"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// EnsureBucket creates the bucket if it does not exist.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	ctx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return nil
}

// New connects to the endpoint and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	partSize, err := resolvePartSize(cfg.PartSize)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := EnsureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, err
	}

	return &Store{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		partSize: partSize,
	}, nil
}

func resolvePartSize(size uint64) (uint64, error) {
	if size == 0 {
		return DefaultPartSize, nil
	}
	if size < MinPartSize {
		return 0, fmt.Errorf("part size %d is below the %d byte minimum", size, MinPartSize)
	}
	return size, nil
}

// putOptions fixes the part size so a stream of unknown length is sent in
// bounded chunks instead of one buffer sized for the largest object.
func (s *Store) putOptions() minio.PutObjectOptions {
	return minio.PutObjectOptions{PartSize: s.partSize}
}

func (s *Store) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Open returns the object at path. Returns stashbox.ErrNotFound if there is
// no such object.
func (s *Store) Open(ctx context.Context, path string) (stashbox.Blob, error) {
	if err := ctx.Err(); err != nil {
		return stashbox.Blob{}, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(path), minio.GetObjectOptions{})
	if err != nil {
		return stashbox.Blob{}, fmt.Errorf("get object: %w", err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return stashbox.Blob{}, stashbox.ErrNotFound
		}
		return stashbox.Blob{}, fmt.Errorf("stat object: %w", err)
	}

	return stashbox.Blob{Content: obj, Size: info.Size, ModTime: info.LastModified}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write uploads content to path. The etag is the SHA256 of the content so
// it matches the filesystem backend.
func (s *Store) Write(ctx context.Context, path string, content io.Reader) (stashbox.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return stashbox.SaveResult{}, err
	}

	h := sha256.New()
	body := io.TeeReader(&ctxReader{ctx: ctx, r: content}, h)

	info, err := s.client.PutObject(ctx, s.bucket, s.key(path), body, -1, s.putOptions())
	if err != nil {
		return stashbox.SaveResult{}, fmt.Errorf("put object: %w", err)
	}

	return stashbox.SaveResult{BytesWritten: info.Size, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes the object at path. Returns stashbox.ErrNotFound if there
// is no such object.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.key(path)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return stashbox.ErrNotFound
		}
		return fmt.Errorf("stat object: %w", err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// List returns every object under the configured prefix.
func (s *Store) List(ctx context.Context) ([]stashbox.StorageEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := minio.ListObjectsOptions{Recursive: true}
	if s.prefix != "" {
		opts.Prefix = s.prefix + "/"
	}

	var entries []stashbox.StorageEntry
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		entries = append(entries, stashbox.StorageEntry{
			Path:    strings.TrimPrefix(obj.Key, opts.Prefix),
			Size:    obj.Size,
			ModTime: obj.LastModified,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ stashbox.FileStorage = (*Store)(nil)

// Ping checks the endpoint answers and the bucket exists.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ping object store: %w", err)
	}
	if !exists {
		return fmt.Errorf("ping object store: %w", ErrBucketMissing)
	}
	return nil
}
