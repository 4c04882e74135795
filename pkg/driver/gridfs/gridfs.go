// Package gridfs implements a driver.FileStorage backed by MongoDB GridFS,
// using go.mongodb.org/mongo-driver.
//
// Unlike every other depot driver, GridFS file ids are native 12-byte Mongo
// ObjectIDs (hex-encoded for the FileStorage interface) rather than minted
// UUIDs: the GridFS files collection already has an indexed _id, so forcing
// a second UUID identity onto it would buy nothing. Content type and the
// write timestamp, which GridFS has no dedicated field for, travel in the
// file document's metadata alongside filename.
package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/driver"
)

const timeLayout = "2006-01-02 15:04:05"

type gridMetadata struct {
	ContentType  string `bson:"content_type"`
	LastModified string `bson:"last_modified"`
}

// Storage is a driver.FileStorage implementation backed by a GridFS bucket.
type Storage struct {
	bucket *gridfs.Bucket
}

// New wraps an existing GridFS bucket, typically obtained via
// gridfs.NewBucket(db).
func New(bucket *gridfs.Bucket) (*Storage, error) {
	if bucket == nil {
		return nil, driver.NewError("configure", "gridfs", "", fmt.Errorf("%w: bucket is required", driver.ErrConfiguration))
	}
	return &Storage{bucket: bucket}, nil
}

// NewFromDatabase creates a GridFS bucket on db and wraps it in a Storage.
func NewFromDatabase(db *mongo.Database, bucketName string) (*Storage, error) {
	var opts *options.BucketOptions
	if bucketName != "" {
		opts = options.GridFSBucket().SetName(bucketName)
	}
	bucket, err := gridfs.NewBucket(db, opts)
	if err != nil {
		return nil, driver.NewError("configure", "gridfs", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return New(bucket)
}

func (s *Storage) Create(ctx context.Context, content any, filename, contentType string) (string, error) {
	resolved, err := driver.ResolveContent(content, filename, contentType)
	if err != nil {
		return "", driver.NewError("create", "gridfs", "", err)
	}
	if resolved.ContentType == driver.DefaultContentType {
		if guessed := guessContentType(resolved.Filename); guessed != "" {
			resolved.ContentType = guessed
		}
	}

	uploadOpts := options.GridFSUpload().SetMetadata(gridMetadata{
		ContentType:  resolved.ContentType,
		LastModified: time.Now().UTC().Format(timeLayout),
	})

	stream, err := s.bucket.OpenUploadStream(resolved.Filename, uploadOpts)
	if err != nil {
		return "", driver.NewError("create", "gridfs", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	if err := writeAndClose(stream, resolved.Reader); err != nil {
		return "", driver.NewError("create", "gridfs", "", err)
	}

	id := objectIDToHex(stream.FileID)
	logger.DebugCtx(ctx, "gridfs: file created", logger.FileID(id), logger.Filename(resolved.Filename))
	return id, nil
}

func writeAndClose(stream *gridfs.UploadStream, r io.Reader) error {
	buf := make([]byte, 256*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := stream.Write(buf[:n]); werr != nil {
				stream.Close()
				return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, werr)
			}
		}
		if rerr != nil {
			break
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, fileID string) (driver.StoredFile, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, driver.NewError("get", "gridfs", fileID, driver.ErrInvalidID)
	}

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, driver.NewError("get", "gridfs", fileID, driver.ErrNotFound)
		}
		return nil, driver.NewError("get", "gridfs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	file := stream.GetFile()
	var meta gridMetadata
	if file.Metadata != nil {
		_ = bson.Unmarshal(file.Metadata, &meta)
	}

	lastModified := file.UploadDate
	if meta.LastModified != "" {
		if parsed, err := time.Parse(timeLayout, meta.LastModified); err == nil {
			lastModified = parsed
		}
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = driver.DefaultContentType
	}
	filename := file.Name
	if filename == "" {
		filename = driver.DefaultFilename
	}

	return &storedFile{
		id:           fileID,
		stream:       stream,
		filename:     filename,
		contentType:  contentType,
		length:       file.Length,
		lastModified: lastModified,
	}, nil
}

// Replace deletes the existing file and re-inserts the new content under
// the same id. This mirrors the Python driver's delete-then-put sequence
// exactly: between the two calls, a concurrent Get observes ErrNotFound.
// That window is accepted, not hidden. Replacing an id that is not stored
// fails with ErrNotFound.
func (s *Storage) Replace(ctx context.Context, fileID string, content any, filename, contentType string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return "", driver.NewError("replace", "gridfs", fileID, driver.ErrInvalidID)
	}

	exists, err := s.Exists(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", driver.NewError("replace", "gridfs", fileID, driver.ErrNotFound)
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
		} else if errors.Is(err, driver.ErrNotFound) {
			return "", driver.NewError("replace", "gridfs", fileID, driver.ErrNotFound)
		}
	}

	if err := s.bucket.Delete(oid); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return "", driver.NewError("replace", "gridfs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	resolved, err := driver.ResolveContent(content, filename, contentType)
	if err != nil {
		return "", driver.NewError("replace", "gridfs", fileID, err)
	}
	if resolved.ContentType == driver.DefaultContentType {
		if guessed := guessContentType(resolved.Filename); guessed != "" {
			resolved.ContentType = guessed
		}
	}

	uploadOpts := options.GridFSUpload().SetMetadata(gridMetadata{
		ContentType:  resolved.ContentType,
		LastModified: time.Now().UTC().Format(timeLayout),
	})
	stream, err := s.bucket.OpenUploadStreamWithID(oid, resolved.Filename, uploadOpts)
	if err != nil {
		return "", driver.NewError("replace", "gridfs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	if err := writeAndClose(stream, resolved.Reader); err != nil {
		return "", driver.NewError("replace", "gridfs", fileID, err)
	}

	logger.DebugCtx(ctx, "gridfs: file replaced", logger.FileID(fileID))
	return fileID, nil
}

func (s *Storage) Delete(ctx context.Context, fileID string) error {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return driver.NewError("delete", "gridfs", fileID, driver.ErrInvalidID)
	}
	if err := s.bucket.Delete(oid); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return driver.NewError("delete", "gridfs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return nil
}

func (s *Storage) Exists(ctx context.Context, fileID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return false, driver.NewError("exists", "gridfs", fileID, driver.ErrInvalidID)
	}

	cursor, err := s.bucket.Find(bson.M{"_id": oid})
	if err != nil {
		return false, driver.NewError("exists", "gridfs", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	defer cursor.Close(ctx)
	return cursor.Next(ctx), nil
}

func (s *Storage) List(ctx context.Context) ([]string, error) {
	cursor, err := s.bucket.Find(bson.M{})
	if err != nil {
		return nil, driver.NewError("list", "gridfs", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var file struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return nil, driver.NewError("list", "gridfs", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
		}
		ids = append(ids, objectIDToHex(file.ID))
	}
	return ids, nil
}

func objectIDToHex(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprintf("%v", id)
}

func guessContentType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	t := mime.TypeByExtension(ext)
	if idx := strings.Index(t, ";"); idx != -1 {
		t = strings.TrimSpace(t[:idx])
	}
	return t
}

var _ driver.FileStorage = (*Storage)(nil)
