package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryOptions identifies the Cloudinary account. URL takes precedence
// over the individual credentials.
type CloudinaryOptions struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
	Logger    *log.Logger
}

// Cloudinary implements Store on top of the Cloudinary upload and admin APIs.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	logger *log.Logger
}

// NewCloudinary builds a client from opts.
func NewCloudinary(opts CloudinaryOptions) (*Cloudinary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if opts.URL != "" {
		cld, err = cloudinary.NewFromURL(opts.URL)
	} else {
		cld, err = cloudinary.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("configure cloudinary: %w", err)
	}

	logger.Println("blob: cloudinary client configured")
	return &Cloudinary{cld: cld, logger: logger}, nil
}

// Upload sends r to Cloudinary under folder.
func (c *Cloudinary) Upload(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	if err := CheckFormat(filename); err != nil {
		return "", err
	}
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:         folder,
		UniqueFilename: api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", filename, res.Error.Message)
	}
	return res.SecureURL, nil
}

// UploadFile sends a local file to Cloudinary under folder.
func (c *Cloudinary) UploadFile(ctx context.Context, folder, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()
	return c.Upload(ctx, folder, filepath.Base(filePath), f)
}

// Exists looks publicID up through the admin API.
func (c *Cloudinary) Exists(ctx context.Context, publicID string) (bool, error) {
	res, err := c.cld.Admin.Asset(ctx, admin.AssetParams{PublicID: publicID})
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		if strings.Contains(strings.ToLower(res.Error.Message), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("lookup %s: %s", publicID, res.Error.Message)
	}
	return res.PublicID != "", nil
}

// Delete destroys publicID.
func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("destroy %s: %w", publicID, errors.New(res.Error.Message))
	}
	return nil
}
