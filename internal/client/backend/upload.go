// internal/client/backend/upload.go
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
)

const (
	BucketAvatars    = "avatars"
	BucketBookCovers = "book-covers"
)

// StoredObject is the location of an uploaded file.
type StoredObject struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	URL    string `json:"url"`
}

// StorageUpload stores file under bucket/path and returns where it landed.
func (c *Client) StorageUpload(ctx context.Context, bucket, path string, file io.Reader) (StoredObject, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("path", path); err != nil {
		return StoredObject{}, err
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return StoredObject{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return StoredObject{}, fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return StoredObject{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/storage/"+url.PathEscape(bucket), nil), &buf)
	if err != nil {
		return StoredObject{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out StoredObject
	if err := c.send(req, KindMutation, &out); err != nil {
		return StoredObject{}, err
	}
	return out, nil
}
