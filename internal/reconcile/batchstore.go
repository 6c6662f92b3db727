package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"kitflow_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BatchStore keeps large batch documents in object storage between submit
// and background processing. Documents are JSON arrays of records keyed by
// batch id.
type BatchStore struct {
	client *minio.Client
	bucket string
}

// NewBatchStore creates a MinIO-backed batch document store.
func NewBatchStore(cfg config.BatchStoreConfig) (*BatchStore, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &BatchStore{client: client, bucket: cfg.GetMinioBucketBatchDocuments()}, nil
}

// EnsureBucketExists creates the batch-documents bucket if it doesn't exist.
func (s *BatchStore) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put stores the batch document.
func (s *BatchStore) Put(ctx context.Context, batchID string, records []Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal batch document: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectKey(batchID),
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to store batch document %s: %w", batchID, err)
	}
	return nil
}

// Get loads a stored batch document.
func (s *BatchStore) Get(ctx context.Context, batchID string) ([]Record, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(batchID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get batch document %s: %w", batchID, err)
	}
	defer obj.Close()

	payload, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch document %s: %w", batchID, err)
	}

	var records []Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("unmarshal batch document %s: %w", batchID, err)
	}
	return records, nil
}

// Delete removes a processed batch document.
func (s *BatchStore) Delete(ctx context.Context, batchID string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey(batchID), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete batch document %s: %w", batchID, err)
	}
	return nil
}

func objectKey(batchID string) string {
	return "batches/" + batchID + ".json"
}
