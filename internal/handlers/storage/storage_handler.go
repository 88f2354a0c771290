// internal/handlers/storage/storage_handler.go
package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"segmentbook-service/internal/middleware"
	xerrors "segmentbook-service/internal/pkg/errors"
	"segmentbook-service/internal/pkg/response"
	"segmentbook-service/internal/service/storage"
)

type Uploader interface {
	Upload(ctx context.Context, bucket, dir, name string, r io.Reader) (*storage.Object, error)
}

type StorageHandler struct {
	uploader Uploader
	maxSize  int64
	logger   *zap.Logger
}

func NewStorageHandler(uploader Uploader, maxSize int64, logger *zap.Logger) *StorageHandler {
	return &StorageHandler{uploader: uploader, maxSize: maxSize, logger: logger}
}

// Upload POST /storage/:bucket, multipart fields "path" and "file". Objects
// always land under the uploader's own directory.
func (h *StorageHandler) Upload(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	// Leave room for the multipart envelope around the file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.FromError(c, "upload failed", xerrors.New(xerrors.ErrInvalidInput, "File is too large"))
			return
		}
		response.ValidationError(c, "upload failed", xerrors.New(xerrors.ErrInvalidInput, "file is required"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.FromError(c, "upload failed", err)
		return
	}
	defer f.Close()

	// The requested path only contributes its extension; names are generated.
	name := fh.Filename
	if hint := c.PostForm("path"); hint != "" && path.Ext(name) == "" {
		name = hint
	}

	obj, err := h.uploader.Upload(c.Request.Context(), c.Param("bucket"), userID, name, f)
	if err != nil {
		h.logger.Info("upload rejected", zap.String("user_id", userID), zap.Error(err))
		response.FromError(c, "upload failed", err)
		return
	}
	response.Success(c, http.StatusCreated, "file uploaded", obj)
}
