// Package reliability handles off-site backup of the results database.
package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// BackupService uploads database files to S3 after completed sweep runs.
type BackupService struct {
	bucket    string
	region    string
	accessKey string
	secretKey string
	dbPath    string
	log       zerolog.Logger
}

// NewBackupService creates a backup service for the database at dbPath.
// When accessKey/secretKey are empty the default AWS credential chain is
// used.
func NewBackupService(bucket, region, accessKey, secretKey, dbPath string, log zerolog.Logger) *BackupService {
	return &BackupService{
		bucket:    bucket,
		region:    region,
		accessKey: accessKey,
		secretKey: secretKey,
		dbPath:    dbPath,
		log:       log.With().Str("component", "backup").Logger(),
	}
}

// BackupResults uploads the results database to
// s3://<bucket>/factorlab/<timestamp>/<filename>.
func (b *BackupService) BackupResults(ctx context.Context) error {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(b.region),
	}
	if b.accessKey != "" && b.secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(b.accessKey, b.secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	f, err := os.Open(b.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database for backup: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("factorlab/%s/%s", time.Now().UTC().Format("2006-01-02T15-04-05"), filepath.Base(b.dbPath))
	uploader := manager.NewUploader(s3.NewFromConfig(cfg))
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup to s3://%s/%s: %w", b.bucket, key, err)
	}

	b.log.Info().Str("bucket", b.bucket).Str("key", key).Msg("Results database backed up")
	return nil
}
