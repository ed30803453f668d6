package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"cmms/internal/models"
	"cmms/internal/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ models.AttachmentSigner = (*S3Service)(nil)

// S3Service stores work order attachments in S3 or an S3-compatible
// bucket. Objects are private and served through pre-signed URLs.
type S3Service struct {
	client     *s3.Client
	bucketName string
	logger     *logger.Logger
}

// NewS3Service builds the client and verifies the bucket is reachable.
// endpoint is optional and selects an S3-compatible provider.
func NewS3Service(ctx context.Context, bucketName, endpoint, region, accessKey, secretKey string) (*S3Service, error) {
	log := logger.New("s3_service")

	// Validate required credentials
	if accessKey == "" || secretKey == "" {
		return nil, log.Error("S3 credentials are empty", fmt.Errorf("accessKey or secretKey is empty"))
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"", // Session token (not needed for basic auth)
		)),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, log.Error("Unable to load SDK config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	// Verify credentials by making a test API call
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		return nil, log.Error("Failed to verify S3 bucket", err)
	}

	log.Success("S3 service initialized for bucket %s", bucketName)

	return &S3Service{
		client:     client,
		bucketName: bucketName,
		logger:     log,
	}, nil
}

// UploadFile stores content under key.
func (s *S3Service) UploadFile(ctx context.Context, content []byte, key, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ACL:         types.ObjectCannedACLPrivate,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return s.logger.Error("Failed to upload file to storage", err)
	}
	s.logger.Info("Stored object %s (%d bytes)", key, len(content))
	return nil
}

// GetSignedURL presigns a GET for path.
func (s *S3Service) GetSignedURL(ctx context.Context, path string, duration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	presignedURL, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(duration))
	if err != nil {
		return "", s.logger.Error("Failed to generate pre-signed URL", err)
	}
	return presignedURL.URL, nil
}
