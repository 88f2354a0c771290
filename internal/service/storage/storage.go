// internal/service/storage/storage.go
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	xerrors "segmentbook-service/internal/pkg/errors"
)

// Buckets that accept uploads.
const (
	BucketAvatars    = "avatars"
	BucketBookCovers = "book-covers"
)

var buckets = map[string]bool{BucketAvatars: true, BucketBookCovers: true}

// Object is a stored upload.
type Object struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	URL    string `json:"url"`
}

// StorageService keeps uploaded images on local disk and serves them under
// <publicURL>/storage/<bucket>/<path>.
type StorageService struct {
	root      string
	publicURL string
	maxSize   int64
	logger    *zap.Logger
}

func NewStorageService(root, publicURL string, maxSize int64, logger *zap.Logger) *StorageService {
	return &StorageService{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   maxSize,
		logger:    logger,
	}
}

// Root is the directory objects are written under.
func (s *StorageService) Root() string { return s.root }

// Upload stores r in bucket. The object is placed under dir (usually the
// uploader's id) with a generated file name; ext is taken from name.
func (s *StorageService) Upload(ctx context.Context, bucket, dir, name string, r io.Reader) (*Object, error) {
	if !buckets[bucket] {
		return nil, xerrors.Newf(xerrors.ErrNotFound, "Unknown bucket %q", bucket)
	}
	cleanDir, err := safeDir(dir)
	if err != nil {
		return nil, err
	}

	// One byte over the limit tells us the upload is too large.
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, xerrors.Wrap(err, "read upload")
	}
	if int64(len(data)) > s.maxSize {
		return nil, xerrors.Newf(xerrors.ErrInvalidInput, "File is larger than %d MB", s.maxSize>>20)
	}
	if len(data) == 0 {
		return nil, xerrors.New(xerrors.ErrInvalidInput, "File is empty")
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, xerrors.New(xerrors.ErrInvalidInput, "Only image uploads are allowed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objPath := path.Join(cleanDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	full := filepath.Join(s.root, bucket, filepath.FromSlash(objPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, xerrors.Wrap(err, "create upload dir")
	}
	if err := writeFile(full, data); err != nil {
		return nil, err
	}

	s.logger.Info("object stored",
		zap.String("bucket", bucket),
		zap.String("path", objPath),
		zap.Int("bytes", len(data)),
	)
	return &Object{Bucket: bucket, Path: objPath, URL: s.URL(bucket, objPath)}, nil
}

// URL is the public address of an object.
func (s *StorageService) URL(bucket, objPath string) string {
	return fmt.Sprintf("%s/storage/%s/%s", s.publicURL, bucket, objPath)
}

func writeFile(name string, data []byte) error {
	tmp := name + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return xerrors.Wrap(err, "write upload")
	}
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return xerrors.Wrap(err, "commit upload")
	}
	return nil
}

// safeDir rejects absolute paths and anything escaping the bucket.
func safeDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ".", nil
	}
	if strings.HasPrefix(dir, "/") || strings.Contains(dir, "\\") {
		return "", xerrors.New(xerrors.ErrInvalidInput, "Invalid upload path")
	}
	clean := path.Clean(dir)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.ContainsRune(clean, 0) {
		return "", xerrors.New(xerrors.ErrInvalidInput, "Invalid upload path")
	}
	return clean, nil
}
