package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/id"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store wraps S3 operations for the application.
type Store struct {
	client *s3.Client
	bucket string
}

// NewClient creates an S3 client. When endpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, endpointURL string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		}
	})
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Upload streams r to S3 under key and returns the object URL.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// ArchiveAuditLogs writes entries as one JSON Lines object and returns its URL.
// Retention cleanup only deletes entries after this succeeds.
func (s *Store) ArchiveAuditLogs(ctx context.Context, entries []domain.AuditLogEntry, at time.Time) (string, error) {
	body, err := encodeJSONL(entries)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, archiveKey(at), bytes.NewReader(body), "application/x-ndjson")
}

// archiveKey partitions archives by UTC day: audit/2026/03/01/<ulid>.jsonl.
func archiveKey(at time.Time) string {
	return fmt.Sprintf("audit/%s/%s.jsonl", at.UTC().Format("2006/01/02"), id.New())
}

func encodeJSONL(entries []domain.AuditLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return nil, fmt.Errorf("encode audit entry %s: %w", entries[i].LogID, err)
		}
	}
	return buf.Bytes(), nil
}
