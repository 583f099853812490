package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"startup-cms/internal/config"
)

const minioBackend = "minio"

// MinioAPI is the subset of *minio.Client the store needs.
type MinioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

type MinioStore struct {
	client MinioAPI
	bucket string
}

func NewMinioStore(client MinioAPI, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

// NewMinioClient creates a MinIO client with static credentials.
func NewMinioClient(cfg config.MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return client, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *MinioStore) EnsureBucket(ctx context.Context, logger *slog.Logger) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("error checking if bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("error creating bucket: %w", err)
	}
	logger.Info("created bucket", "bucket", m.bucket)
	return nil
}

func (m *MinioStore) Backend() string { return minioBackend }

func (m *MinioStore) Put(ctx context.Context, obj Object) (err error) {
	ctx, span := startSpan(ctx, minioBackend, obj)
	defer func() { endSpan(span, err) }()

	_, err = m.client.PutObject(ctx, m.bucket, obj.Name,
		bytes.NewReader(obj.Body), int64(len(obj.Body)),
		minio.PutObjectOptions{ContentType: DetectContentType(obj.Body, obj.ContentType)},
	)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.StatusCode != 0 {
			msg := resp.Message
			if msg == "" {
				msg = err.Error()
			}
			return &UpstreamError{Backend: minioBackend, StatusCode: resp.StatusCode, Message: msg}
		}
		return fmt.Errorf("minio put %s: %w", obj.Name, err)
	}
	return nil
}
