// Package s3 implements a driver.FileStorage backed by an S3-compatible
// object store, using aws-sdk-go-v2.
//
// Depot-specific metadata (the original filename and a second-precision
// last-modified timestamp, since S3 keys are opaque file ids) is carried as
// object user metadata under the x-depot-filename and x-depot-modified
// keys, mirroring the Python ancestor's boto3 driver. Content type is
// stored natively as the object's ContentType rather than duplicated into
// metadata.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/fileid"
	"github.com/depotgo/depot/pkg/telemetry"
)

const metadataFilenameKey = "x-depot-filename"
const metadataModifiedKey = "x-depot-modified"

// timeLayout is the second-precision, zone-free format every driver uses to
// render last_modified, matching the ground truth's utils.timestamp().
const timeLayout = "2006-01-02 15:04:05"

// ACL names accepted by Config.ACL. These map directly onto S3 canned ACLs.
const (
	ACLPrivate    = "private"
	ACLPublicRead = "public-read"
)

// Config configures an S3-backed store.
type Config struct {
	Bucket         string        `mapstructure:"bucket" yaml:"bucket" validate:"required"`
	Region         string        `mapstructure:"region" yaml:"region"`
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	KeyPrefix      string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	ForcePathStyle bool          `mapstructure:"force_path_style" yaml:"force_path_style"`
	ACL            string        `mapstructure:"acl" yaml:"acl"`
	StorageClass   string        `mapstructure:"storage_class" yaml:"storage_class"`
	PresignTTL     time.Duration `mapstructure:"presign_ttl" yaml:"presign_ttl"`
}

func (c Config) withDefaults() Config {
	if c.ACL == "" {
		c.ACL = ACLPrivate
	}
	if c.PresignTTL == 0 {
		c.PresignTTL = 365 * 24 * time.Hour
	}
	return c
}

// Storage is a driver.FileStorage implementation backed by S3.
type Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     Config
}

// New constructs a Storage from an existing S3 client.
func New(client *s3.Client, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, driver.NewError("configure", "s3", "", fmt.Errorf("%w: bucket is required", driver.ErrConfiguration))
	}
	cfg = cfg.withDefaults()
	return &Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
	}, nil
}

// NewFromConfig builds an S3 client from cfg and wraps it in a Storage,
// creating the bucket if it does not already exist.
func NewFromConfig(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, driver.NewError("configure", "s3", "", fmt.Errorf("%w: bucket is required", driver.ErrConfiguration))
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, driver.NewError("configure", "s3", "", fmt.Errorf("%w: load aws config: %v", driver.ErrBackendUnavailable, err))
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	store, err := New(client, cfg)
	if err != nil {
		return nil, err
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err == nil {
		return nil
	}
	if !isNotFoundError(err) {
		return driver.NewError("configure", "s3", "", fmt.Errorf("%w: head bucket: %v", driver.ErrBackendUnavailable, err))
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return driver.NewError("configure", "s3", "", fmt.Errorf("%w: create bucket: %v", driver.ErrBackendUnavailable, err))
	}
	return nil
}

func (s *Storage) key(id string) string {
	return s.cfg.KeyPrefix + id
}

func (s *Storage) Create(ctx context.Context, content any, filename, contentType string) (string, error) {
	id := fileid.New()
	if err := s.put(ctx, id, content, filename, contentType); err != nil {
		return "", driver.NewError("create", "s3", id, err)
	}
	logger.DebugCtx(ctx, "s3: object created", logger.Bucket(s.cfg.Bucket), logger.Key(s.key(id)), logger.FileID(id))
	telemetry.SetAttributes(ctx, telemetry.Bucket(s.cfg.Bucket), telemetry.StorageKey(s.key(id)), telemetry.Region(s.cfg.Region))
	return id, nil
}

func (s *Storage) put(ctx context.Context, id string, content any, filename, contentType string) error {
	resolved, err := driver.ResolveContent(content, filename, contentType)
	if err != nil {
		return err
	}

	// A payload that can seek is streamed as-is; anything else is buffered
	// into memory first.
	var body io.Reader
	if rs, ok := resolved.Reader.(io.ReadSeeker); ok {
		if _, err := rs.Seek(0, io.SeekCurrent); err == nil {
			body = rs
		}
	}
	if body == nil {
		data, err := io.ReadAll(resolved.Reader)
		if err != nil {
			return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err)
		}
		body = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.key(id)),
		Body:        body,
		ContentType: aws.String(resolved.ContentType),
		Metadata: map[string]string{
			metadataFilenameKey: url.QueryEscape(resolved.Filename),
			metadataModifiedKey: time.Now().UTC().Format(timeLayout),
		},
	}
	if s.cfg.ACL == ACLPublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if s.cfg.StorageClass != "" {
		input.StorageClass = types.StorageClass(s.cfg.StorageClass)
	}
	if disp := contentDisposition(resolved.Filename); disp != "" {
		input.ContentDisposition = aws.String(disp)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%w: put object: %v", driver.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, fileID string) (driver.StoredFile, error) {
	if !fileid.Valid(fileID) {
		return nil, driver.NewError("get", "s3", fileID, driver.ErrInvalidID)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(fileID)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, driver.NewError("get", "s3", fileID, driver.ErrNotFound)
		}
		return nil, driver.NewError("get", "s3", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	telemetry.SetAttributes(ctx, telemetry.Bucket(s.cfg.Bucket), telemetry.StorageKey(s.key(fileID)), telemetry.Region(s.cfg.Region))

	filename, _ := url.QueryUnescape(out.Metadata[metadataFilenameKey])
	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = driver.DefaultContentType
	}
	if filename == "" {
		filename = driver.DefaultFilename
	}

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}

	lastModified := time.Time{}
	if modified, ok := out.Metadata[metadataModifiedKey]; ok {
		if parsed, err := time.Parse(timeLayout, modified); err == nil {
			lastModified = parsed
		}
	}
	if lastModified.IsZero() && out.LastModified != nil {
		lastModified = out.LastModified.UTC().Truncate(time.Second)
	}

	return &storedFile{
		id:           fileID,
		body:         out.Body,
		filename:     filename,
		contentType:  contentType,
		length:       length,
		lastModified: lastModified,
		publicURL:    s.publicURL(ctx, fileID),
	}, nil
}

// publicURL returns a presigned GET URL with the query string stripped, for
// buckets where the object ACL is public-read (matching the Python
// ancestor's boto3 driver, which presigns then discards the signature).
// For private objects it returns "".
func (s *Storage) publicURL(ctx context.Context, fileID string) string {
	if s.cfg.ACL != ACLPublicRead {
		return ""
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(fileID)),
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return ""
	}
	if idx := strings.Index(req.URL, "?"); idx != -1 {
		return req.URL[:idx]
	}
	return req.URL
}

func (s *Storage) Replace(ctx context.Context, fileID string, content any, filename, contentType string) (string, error) {
	if !fileid.Valid(fileID) {
		return "", driver.NewError("replace", "s3", fileID, driver.ErrInvalidID)
	}

	exists, err := s.Exists(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", driver.NewError("replace", "s3", fileID, driver.ErrNotFound)
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

	if err := s.put(ctx, fileID, content, filename, contentType); err != nil {
		return "", driver.NewError("replace", "s3", fileID, err)
	}
	logger.DebugCtx(ctx, "s3: object replaced", logger.FileID(fileID))
	return fileID, nil
}

func (s *Storage) Delete(ctx context.Context, fileID string) error {
	if !fileid.Valid(fileID) {
		return driver.NewError("delete", "s3", fileID, driver.ErrInvalidID)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(fileID)),
	})
	if err != nil {
		return driver.NewError("delete", "s3", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return nil
}

func (s *Storage) Exists(ctx context.Context, fileID string) (bool, error) {
	if !fileid.Valid(fileID) {
		return false, driver.NewError("exists", "s3", fileID, driver.ErrInvalidID)
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(fileID)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, driver.NewError("exists", "s3", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return true, nil
}

func (s *Storage) List(ctx context.Context) ([]string, error) {
	var ids []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.KeyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, driver.NewError("list", "s3", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.cfg.KeyPrefix != "" {
				key = strings.TrimPrefix(key, s.cfg.KeyPrefix)
			}
			ids = append(ids, key)
		}
	}
	return ids, nil
}

// contentDisposition renders an RFC 6266 inline Content-Disposition value
// with both a plain ascii filename and a percent-encoded filename* fallback
// for clients that understand it. Non-ascii bytes, quotes and backslashes
// become '_' in the ascii filename.
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

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var nfb *types.NotFound
	if errors.As(err, &nfb) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}

var _ driver.FileStorage = (*Storage)(nil)
