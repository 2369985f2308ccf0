package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver keeps a copy of every finished bracket outside the database.
type Archiver interface {
	Archive(ctx context.Context, rec *group.BracketRecord) (string, error)
}

type Config struct {
	// Endpoint is the S3 API url. For R2 leave it empty and set AccountID.
	Endpoint        string
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" &&
		(c.Endpoint != "" || c.AccountID != "")
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

type S3Archiver struct {
	client *s3.Client
	bucket string
}

func NewS3Archiver(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if !cfg.Enabled() {
		return nil, errors.New("invalid archive configuration: bucket, credentials and endpoint are required")
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.endpoint())
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Archiver{client: client, bucket: cfg.Bucket}, nil
}

func Key(rec *group.BracketRecord) string {
	return fmt.Sprintf("brackets/%s/%s.json", rec.GroupID, rec.ID)
}

// Archive uploads the record as JSON and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, rec *group.BracketRecord) (string, error) {
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode bracket %s: %w", rec.ID, err)
	}

	key := Key(rec)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload bracket archive (key: %s): %w", key, err)
	}
	return key, nil
}

type Nop struct{}

func (Nop) Archive(context.Context, *group.BracketRecord) (string, error) { return "", nil }
