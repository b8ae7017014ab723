// Package s3 uploads artifacts to any S3-compatible object store and hands out presigned GET
// links as the public URL.
package s3

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const DefaultLinkExpiry = 7 * 24 * time.Hour

type Config struct {
	// Endpoint is the S3 host:port, without scheme.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// LinkExpiry bounds how long presigned links stay valid; S3 caps this at 7 days.
	LinkExpiry time.Duration
}

type Uploader struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	log    *zap.SugaredLogger
}

func New(config Config) (*Uploader, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if config.LinkExpiry <= 0 || config.LinkExpiry > DefaultLinkExpiry {
		config.LinkExpiry = DefaultLinkExpiry
	}
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: creating client: %w", err)
	}
	return &Uploader{
		client: client,
		bucket: config.Bucket,
		expiry: config.LinkExpiry,
		log:    zap.S().Named("s3"),
	}, nil
}

// EnsureBucket creates the configured bucket if it does not exist yet. Call once at startup.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("s3: checking bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("s3: creating bucket: %w", err)
	}
	u.log.Infof("created bucket %s", u.bucket)
	return nil
}

func (u *Uploader) Name() string {
	return "S3"
}

// Upload stores the file under its base name and returns a presigned GET link.
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	object := filepath.Base(path)
	info, err := u.client.FPutObject(ctx, u.bucket, object, path, minio.PutObjectOptions{
		ContentType: contentTypeFor(object),
	})
	if err != nil {
		return "", fmt.Errorf("s3: storing object: %w", err)
	}
	u.log.Infof("stored %s (%d bytes)", object, info.Size)

	link, err := u.client.PresignedGetObject(ctx, u.bucket, object, u.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("s3: presigning link: %w", err)
	}
	return link.String(), nil
}

var contentTypes = map[string]string{
	".flv":  "video/x-flv",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if contentType, ok := contentTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
