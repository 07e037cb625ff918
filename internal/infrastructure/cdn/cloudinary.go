package cdn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/ports"
)

const serviceName = "cloudinary"

// ErrDisabled is returned by NewCloudinaryUploader when credentials are missing.
var ErrDisabled = errors.New("cloudinary credentials are not configured")

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryUploader copies remote images into a Cloudinary folder.
type CloudinaryUploader struct {
	api    uploadAPI
	folder string
}

var _ ports.ImageUploader = (*CloudinaryUploader)(nil)

// NewCloudinaryUploader builds an uploader from credentials.
func NewCloudinaryUploader(cfg config.CDNConfig) (*CloudinaryUploader, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryUploader{api: &cld.Upload, folder: cfg.Folder}, nil
}

// Upload lets Cloudinary fetch source by URL. An empty source uploads nothing.
func (u *CloudinaryUploader) Upload(ctx context.Context, source string) (ports.UploadResult, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return ports.UploadResult{}, nil
	}

	res, err := u.api.Upload(ctx, source, uploader.UploadParams{
		Folder:         u.folder,
		UseFilename:    api.Bool(true),
		UniqueFilename: api.Bool(true),
		Overwrite:      api.Bool(false),
		Invalidate:     api.Bool(false),
	})
	if err != nil {
		return ports.UploadResult{}, apperr.Wrap(serviceName, err)
	}
	if res == nil {
		return ports.UploadResult{}, &apperr.ExternalError{Service: serviceName, Message: "empty upload response"}
	}
	if res.Error.Message != "" {
		return ports.UploadResult{}, &apperr.ExternalError{Service: serviceName, Message: res.Error.Message}
	}
	return ports.UploadResult{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

// Disabled is the uploader used when no CDN is configured.
type Disabled struct{}

var _ ports.ImageUploader = Disabled{}

func (Disabled) Upload(context.Context, string) (ports.UploadResult, error) {
	return ports.UploadResult{}, nil
}
