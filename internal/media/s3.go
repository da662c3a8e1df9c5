// internal/media/s3.go
// Package media provides S3-compatible storage for large delivery binaries.
// Small deliverables are embedded as data URLs on the product itself; files
// past that point live in a bucket and are handed out via presigned URLs.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Prefix marks a product fileUrl as bucket-hosted. Everything after it is
// the object key.
const Prefix = "s3://"

// IsManaged reports whether a delivery reference points into the bucket.
func IsManaged(fileURL string) bool {
	return strings.HasPrefix(fileURL, Prefix)
}

// Key extracts the object key from a managed delivery reference.
func Key(fileURL string) string {
	return strings.TrimPrefix(fileURL, Prefix)
}

// S3Client wraps the AWS S3 client for delivery operations.
// It generates presigned upload URLs for admins and presigned download URLs
// for entitled buyers.
type S3Client struct {
	client *s3.Client // AWS S3 client
	bucket string     // S3 bucket name for delivery binaries
}

// NewS3Client creates a new S3 client for delivery operations.
// It supports both AWS S3 and S3-compatible services like MinIO.
// Parameters:
//   - endpoint: S3 service endpoint URL
//   - region: AWS region (or equivalent for S3-compatible services)
//   - bucket: S3 bucket name for delivery storage
//   - accessKey: Access key for authentication
//   - secretKey: Secret key for authentication
// Returns:
//   - *S3Client: Initialized S3 client
//   - error: Any error that occurred during initialization
func NewS3Client(endpoint, region, bucket, accessKey, secretKey string) (*S3Client, error) {
	// Load AWS configuration with custom endpoint and credentials
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		// Configure static credentials
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with path-style addressing for compatibility
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO and other S3-compatible services
	})

	return &S3Client{
		client: client,
		bucket: bucket,
	}, nil
}

// GenerateUploadURL generates a presigned URL for uploading a delivery
// binary. This allows the admin dashboard to upload directly to the bucket
// without streaming through the storefront service.
// Parameters:
//   - ctx: Context for the operation
//   - key: S3 object key where the file will be stored
//   - expires: Duration until the presigned URL expires
// Returns:
//   - string: Presigned PUT URL
//   - error: Any error that occurred during URL generation
func (s *S3Client) GenerateUploadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	// Create a presign client from the S3 client
	presignClient := s3.NewPresignClient(s.client)

	// Generate a presigned PUT URL for direct client upload
	presignResult, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), // Target S3 bucket
		Key:    aws.String(key),      // Object key in the bucket
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires // URL expiration time
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignResult.URL, nil
}

// GenerateDownloadURL generates a presigned URL for fetching a delivery
// binary. The entitlement check happens before this is called; the URL
// itself is time-limited so leaked links expire.
// Parameters:
//   - ctx: Context for the operation
//   - key: S3 object key to fetch
//   - expires: Duration until the presigned URL expires
// Returns:
//   - string: Presigned GET URL
//   - error: Any error that occurred during URL generation
func (s *S3Client) GenerateDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	presignResult, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket), // Target S3 bucket
		Key:    aws.String(key),      // Object key in the bucket
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires // URL expiration time
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignResult.URL, nil
}

// ObjectSize returns the size in bytes of a stored delivery binary.
// Parameters:
//   - ctx: Context for the operation
//   - key: S3 object key to inspect
// Returns:
//   - int64: Object size in bytes
//   - error: Any error that occurred during the lookup
func (s *S3Client) ObjectSize(ctx context.Context, key string) (int64, error) {
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket), // Target S3 bucket
		Key:    aws.String(key),      // Object key in the bucket
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get object metadata: %w", err)
	}

	return *result.ContentLength, nil
}
