package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"musiclib/internal/config"
	"musiclib/internal/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// MinioStore keeps objects in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *logrus.Logger
}

// NewMinioStore connects to the endpoint and creates the bucket if needed.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, logger *logrus.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	logger.WithFields(logrus.Fields{
		"endpoint": cfg.Endpoint,
		"bucket":   cfg.Bucket,
		"region":   cfg.Region,
		"ssl":      cfg.UseSSL,
	}).Info("Connecting to MinIO")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.WithField("bucket", cfg.Bucket).Info("Created bucket")
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Create uploads r. S3 only exposes an object once the upload completes, so a
// failed upload leaves nothing behind.
func (s *MinioStore) Create(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%s: %w", name, ErrExists)
	}

	info, err := s.client.PutObject(ctx, s.bucket, name, contextReader{ctx: ctx, r: r}, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"object": name,
		"bytes":  info.Size,
	}).Debug("Stored object")
	return info.Size, nil
}

// Open returns the object; *minio.Object seeks with ranged GETs.
func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, Info, error) {
	if err := validateName(name); err != nil {
		return nil, Info{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, s.translate(name, err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, Info{}, s.translate(name, err)
	}
	return obj, Info{Name: name, Size: stat.Size, ModTime: stat.LastModified}, nil
}

// Remove deletes the object. S3 treats deleting a missing key as success.
func (s *MinioStore) Remove(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(s.translate(name, err), ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Exists stats the object.
func (s *MinioStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if errors.Is(s.translate(name, err), ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Ping checks the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *MinioStore) translate(name string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	return err
}
