package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tracktap/internal/capture"
	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/services"
	"tracktap/internal/textutil"
)

const contentType = "audio/mpeg"

// ObjectStore is the subset of the minio client used for uploads.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader copies recordings into a bucket.
type Uploader struct {
	store  ObjectStore
	bucket string
	region string
	prefix string
	logger *slog.Logger

	bucketReady bool
}

var _ capture.Publisher = (*Uploader)(nil)

// New returns an uploader for cfg.Publish, or nil when publishing is disabled.
func New(cfg *config.Config, logger *slog.Logger) (*Uploader, error) {
	if cfg == nil || !cfg.Publish.Enabled {
		return nil, nil
	}
	p := cfg.Publish
	client, err := minio.New(p.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(p.AccessKey, p.SecretKey, ""),
		Secure: p.UseSSL,
		Region: p.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "create client",
			"invalid object storage endpoint "+p.Endpoint, err)
	}
	return NewWithStore(client, p.Bucket, p.Region, p.Prefix, logger), nil
}

// NewWithStore builds an uploader around an existing object store.
func NewWithStore(store ObjectStore, bucket, region, prefix string, logger *slog.Logger) *Uploader {
	return &Uploader{
		store:  store,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(prefix, "/"),
		logger: logging.NewComponentLogger(logger, "publish"),
	}
}

// ObjectKey returns the key a recording is stored under.
func (u *Uploader) ObjectKey(playlistTitle, filePath string) string {
	parts := make([]string, 0, 3)
	if u.prefix != "" {
		parts = append(parts, u.prefix)
	}
	if strings.TrimSpace(playlistTitle) != "" {
		parts = append(parts, textutil.DirName(playlistTitle))
	}
	parts = append(parts, filepath.Base(filePath))
	return path.Join(parts...)
}

// Publish uploads one recording, creating the bucket on first use.
func (u *Uploader) Publish(ctx context.Context, playlistTitle, filePath string) error {
	if u == nil || u.store == nil {
		return nil
	}
	if strings.TrimSpace(filePath) == "" {
		return services.Wrap(services.ErrValidation, "publish", "upload", "recording path is empty", nil)
	}
	if err := u.ensureBucket(ctx); err != nil {
		return err
	}

	key := u.ObjectKey(playlistTitle, filePath)
	info, err := u.store.FPutObject(ctx, u.bucket, key, filePath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return services.Wrap(services.ErrTransient, "publish", "upload",
			fmt.Sprintf("upload %s to %s", filepath.Base(filePath), u.bucket), err)
	}
	u.logger.Info("recording published",
		logging.String("bucket", u.bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size),
		logging.String(logging.FieldEventType, "recording_published"),
	)
	return nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	if u.bucketReady {
		return nil
	}
	exists, err := u.store.BucketExists(ctx, u.bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, "publish", "check bucket", "bucket "+u.bucket, err)
	}
	if !exists {
		err := u.store.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
		if err != nil && !bucketOwned(err) {
			return services.Wrap(services.ErrTransient, "publish", "create bucket", "bucket "+u.bucket, err)
		}
		u.logger.Info("bucket created", logging.String("bucket", u.bucket))
	}
	u.bucketReady = true
	return nil
}

func bucketOwned(err error) bool {
	return minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou"
}

// Check verifies the endpoint is reachable and reports whether the bucket
// already exists.
func (u *Uploader) Check(ctx context.Context) (bool, error) {
	if u == nil || u.store == nil {
		return false, nil
	}
	exists, err := u.store.BucketExists(ctx, u.bucket)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "publish", "check bucket", "bucket "+u.bucket, err)
	}
	return exists, nil
}

// Bucket returns the target bucket name.
func (u *Uploader) Bucket() string {
	if u == nil {
		return ""
	}
	return u.bucket
}
