package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	xerrors "segmentbook-service/internal/pkg/errors"
)

// smallest valid PNG header is enough for content sniffing
var pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func newService(t *testing.T, max int64) *StorageService {
	t.Helper()
	return NewStorageService(t.TempDir(), "http://localhost:8000/", max, zap.NewNop())
}

func TestUploadStoresImage(t *testing.T) {
	s := newService(t, 1<<20)

	obj, err := s.Upload(context.Background(), BucketAvatars, "user-1", "Me.PNG", bytes.NewReader(pngData))
	require.NoError(t, err)

	assert.Equal(t, BucketAvatars, obj.Bucket)
	assert.True(t, strings.HasPrefix(obj.Path, "user-1/"))
	assert.True(t, strings.HasSuffix(obj.Path, ".png"))
	assert.Equal(t, "http://localhost:8000/storage/avatars/"+obj.Path, obj.URL)

	stored, err := os.ReadFile(filepath.Join(s.Root(), BucketAvatars, filepath.FromSlash(obj.Path)))
	require.NoError(t, err)
	assert.Equal(t, pngData, stored)
}

func TestUploadRejects(t *testing.T) {
	s := newService(t, 16)
	ctx := context.Background()

	tests := []struct {
		name   string
		bucket string
		dir    string
		data   []byte
		kind   error
	}{
		{"unknown bucket", "secrets", "u", pngData[:8], xerrors.ErrNotFound},
		{"traversal", BucketAvatars, "../etc", pngData[:8], xerrors.ErrInvalidInput},
		{"absolute", BucketAvatars, "/etc", pngData[:8], xerrors.ErrInvalidInput},
		{"too large", BucketAvatars, "u", pngData, xerrors.ErrInvalidInput},
		{"not an image", BucketBookCovers, "u", []byte("plain text"), xerrors.ErrInvalidInput},
		{"empty", BucketBookCovers, "u", nil, xerrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Upload(ctx, tt.bucket, tt.dir, "x.png", bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}
