// Package gcs implements a driver.FileStorage backed by Google Cloud
// Storage, using cloud.google.com/go/storage.
//
// Depot metadata (filename, content type, write timestamp) is carried as
// GCS object metadata under x-depot-filename/x-depot-content-type/
// x-depot-modified keys, matching the Python ancestor. When the bucket
// policy is public-read, every written object is made public and served
// via its blob.public_url rather than proxied through depot's HTTP layer.
// Under a private policy objects expose no public URL.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/fileid"
)

const (
	metaFilename    = "x-depot-filename"
	metaContentType = "x-depot-content-type"
	metaModified    = "x-depot-modified"
)

// timeLayout is the second-precision, zone-free format every driver uses to
// render last_modified, matching the ground truth's utils.timestamp().
const timeLayout = "2006-01-02 15:04:05"

const (
	ACLPublicRead = "public-read"
	ACLPrivate    = "private"
)

// Config configures a GCS-backed store.
type Config struct {
	ProjectID    string `mapstructure:"project_id" yaml:"project_id" validate:"required"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket" validate:"required"`
	Policy       string `mapstructure:"policy" yaml:"policy"`
	StorageClass string `mapstructure:"storage_class" yaml:"storage_class"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
}

func (c Config) withDefaults() Config {
	if c.Policy == "" {
		c.Policy = ACLPublicRead
	}
	if c.StorageClass == "" {
		c.StorageClass = "STANDARD"
	}
	return c
}

// Storage is a driver.FileStorage implementation backed by a GCS bucket.
type Storage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    Config
}

// New wraps an existing GCS client, creating the bucket (and, for a
// public-read policy, binding objectViewer to allUsers) if it does not
// already exist.
func New(ctx context.Context, client *storage.Client, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" || cfg.ProjectID == "" {
		return nil, driver.NewError("configure", "gcs", "", fmt.Errorf("%w: project_id and bucket are required", driver.ErrConfiguration))
	}
	cfg = cfg.withDefaults()
	if cfg.Policy != ACLPublicRead && cfg.Policy != ACLPrivate {
		return nil, driver.NewError("configure", "gcs", "", fmt.Errorf("%w: policy must be %q or %q", driver.ErrConfiguration, ACLPublicRead, ACLPrivate))
	}

	bucket := client.Bucket(cfg.Bucket)
	if _, err := bucket.Attrs(ctx); err != nil {
		if !errors.Is(err, storage.ErrBucketNotExist) {
			return nil, driver.NewError("configure", "gcs", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
		}
		if err := bucket.Create(ctx, cfg.ProjectID, nil); err != nil {
			return nil, driver.NewError("configure", "gcs", "", fmt.Errorf("%w: create bucket: %v", driver.ErrBackendUnavailable, err))
		}
	}

	s := &Storage{client: client, bucket: bucket, cfg: cfg}
	if cfg.Policy == ACLPublicRead {
		if err := s.setBucketPublicIAM(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// setBucketPublicIAM grants the objectViewer role to allUsers at the
// bucket's default ACL, the uniform-bucket-level-access-free equivalent of
// the Python driver's IAM policy binding.
func (s *Storage) setBucketPublicIAM(ctx context.Context) error {
	if err := s.bucket.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return driver.NewError("configure", "gcs", "", fmt.Errorf("%w: set bucket public acl: %v", driver.ErrBackendUnavailable, err))
	}
	if err := s.bucket.DefaultObjectACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return driver.NewError("configure", "gcs", "", fmt.Errorf("%w: set default object acl: %v", driver.ErrBackendUnavailable, err))
	}
	return nil
}

func (s *Storage) key(id string) string {
	return s.cfg.Prefix + id
}

func (s *Storage) Create(ctx context.Context, content any, filename, contentType string) (string, error) {
	id := fileid.New()
	if err := s.save(ctx, id, content, filename, contentType); err != nil {
		return "", driver.NewError("create", "gcs", id, err)
	}
	logger.DebugCtx(ctx, "gcs: object created", logger.Bucket(s.cfg.Bucket), logger.FileID(id))
	return id, nil
}

func (s *Storage) save(ctx context.Context, id string, content any, filename, contentType string) error {
	resolved, err := driver.ResolveContent(content, filename, contentType)
	if err != nil {
		return err
	}

	obj := s.bucket.Object(s.key(id))
	w := obj.NewWriter(ctx)
	w.ContentType = resolved.ContentType
	w.ContentDisposition = contentDisposition(resolved.Filename)
	w.Metadata = map[string]string{
		metaModified:    time.Now().UTC().Format("2006-01-02 15:04:05"),
		metaFilename:    url.QueryEscape(resolved.Filename),
		metaContentType: resolved.ContentType,
	}
	if s.cfg.StorageClass != "" {
		w.StorageClass = s.cfg.StorageClass
	}

	if _, err := io.Copy(w, resolved.Reader); err != nil {
		w.Close()
		return fmt.Errorf("%w: upload: %v", driver.ErrBackendUnavailable, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: finalize upload: %v", driver.ErrBackendUnavailable, err)
	}

	if s.cfg.Policy == ACLPublicRead {
		if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
			return fmt.Errorf("%w: make public: %v", driver.ErrBackendUnavailable, err)
		}
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, fileID string) (driver.StoredFile, error) {
	if !fileid.Valid(fileID) {
		return nil, driver.NewError("get", "gcs", fileID, driver.ErrInvalidID)
	}

	obj := s.bucket.Object(s.key(fileID))
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, driver.NewError("get", "gcs", fileID, driver.ErrNotFound)
		}
		return nil, driver.NewError("get", "gcs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, driver.NewError("get", "gcs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	filename, _ := url.QueryUnescape(attrs.Metadata[metaFilename])
	if filename == "" {
		filename = driver.DefaultFilename
	}
	contentType := attrs.Metadata[metaContentType]
	if contentType == "" {
		contentType = attrs.ContentType
	}
	if contentType == "" {
		contentType = driver.DefaultContentType
	}

	lastModified := attrs.Updated.UTC().Truncate(time.Second)
	if modified, ok := attrs.Metadata[metaModified]; ok {
		if parsed, err := time.Parse(timeLayout, modified); err == nil {
			lastModified = parsed
		}
	}

	publicURL := ""
	if s.cfg.Policy == ACLPublicRead {
		publicURL = attrs.MediaLink
	}

	return &storedFile{
		id:           fileID,
		body:         r,
		filename:     filename,
		contentType:  contentType,
		length:       attrs.Size,
		lastModified: lastModified,
		publicURL:    publicURL,
	}, nil
}

func (s *Storage) Replace(ctx context.Context, fileID string, content any, filename, contentType string) (string, error) {
	if !fileid.Valid(fileID) {
		return "", driver.NewError("replace", "gcs", fileID, driver.ErrInvalidID)
	}

	exists, err := s.Exists(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", driver.NewError("replace", "gcs", fileID, driver.ErrNotFound)
	}

	if filename == "" || contentType == "" {
		if existing, err := s.Get(ctx, fileID); err == nil {
			if filename == "" {
				filename = existing.Filename()
			}
			if contentType == "" {
				contentType = existing.ContentType()
			}
			existing.Close()
		}
	}

	if err := s.save(ctx, fileID, content, filename, contentType); err != nil {
		return "", driver.NewError("replace", "gcs", fileID, err)
	}
	logger.DebugCtx(ctx, "gcs: object replaced", logger.FileID(fileID))
	return fileID, nil
}

func (s *Storage) Delete(ctx context.Context, fileID string) error {
	if !fileid.Valid(fileID) {
		return driver.NewError("delete", "gcs", fileID, driver.ErrInvalidID)
	}

	if err := s.bucket.Object(s.key(fileID)).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return driver.NewError("delete", "gcs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return nil
}

func (s *Storage) Exists(ctx context.Context, fileID string) (bool, error) {
	if !fileid.Valid(fileID) {
		return false, driver.NewError("exists", "gcs", fileID, driver.ErrInvalidID)
	}

	_, err := s.bucket.Object(s.key(fileID)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, driver.NewError("exists", "gcs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return true, nil
}

func (s *Storage) List(ctx context.Context) ([]string, error) {
	var ids []string
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.cfg.Prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, driver.NewError("list", "gcs", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
		}
		ids = append(ids, strings.TrimPrefix(attrs.Name, s.cfg.Prefix))
	}
	return ids, nil
}

func contentDisposition(filename string) string {
	if filename == "" {
		return ""
	}
	ascii := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		if c := filename[i]; c < 0x80 && c != '"' && c != '\\' {
			ascii = append(ascii, c)
		} else {
			ascii = append(ascii, '_')
		}
	}
	return fmt.Sprintf(`inline; filename="%s"; filename*=utf-8''%s`, ascii, url.QueryEscape(filename))
}

var _ driver.FileStorage = (*Storage)(nil)
