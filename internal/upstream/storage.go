package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
	"github.com/emilythestrangee/main-feed/backend/internal/observability"
)

// Image is an image attachment ready to be uploaded.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StorageService talks to the image-storage collaborator.
type StorageService struct {
	caller
}

func NewStorageService(baseURL string, client *http.Client, metrics *observability.Metrics) *StorageService {
	return &StorageService{caller: newCaller(CollaboratorStorage, baseURL, client, metrics)}
}

// UploadImage posts img as multipart field "file" to {base}/upload_image
// and returns the storage key.
func (s *StorageService) UploadImage(ctx context.Context, img Image) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, img.Filename))
	header.Set("Content-Type", img.ContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", apperr.Wrap(apperr.StorageUploadFailed, "Failed to upload image", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", apperr.Wrap(apperr.StorageUploadFailed, "Failed to upload image", err)
	}
	if err := mw.Close(); err != nil {
		return "", apperr.Wrap(apperr.StorageUploadFailed, "Failed to upload image", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url("/upload_image"), &buf)
	if err != nil {
		return "", apperr.Wrap(apperr.StorageUploadFailed, "Failed to upload image", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := s.do(req)
	if err != nil {
		return "", apperr.Upstream(apperr.StorageUploadFailed, s.name, upstreamStatus(err), "Failed to upload image", err)
	}

	var out struct {
		ImageKey string `json:"image_key"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", apperr.Upstream(apperr.StorageUploadFailed, s.name, http.StatusOK, "Failed to upload image", err)
	}
	if out.ImageKey == "" {
		return "", apperr.Upstream(apperr.StorageUploadFailed, s.name, http.StatusOK, "Failed to upload image", errors.New("response has no image_key"))
	}
	return out.ImageKey, nil
}
