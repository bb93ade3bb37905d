package photostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryStore uploads encoded report photos to Cloudinary and returns
// their delivery URLs, so documents carry a link instead of inline bytes.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are required")
	}

	cloudinaryURL := fmt.Sprintf("cloudinary://%s:%s@%s", apiKey, apiSecret, cloudName)
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	if folder == "" {
		folder = "signalmap"
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	publicID := uuid.NewString()

	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       s.folder,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload of %s: %w", name, err)
	}
	return result.SecureURL, nil
}
