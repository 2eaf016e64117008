// Package archive publishes exported quizzes to an S3-compatible bucket,
// Cloudflare R2 by default.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"docquiz/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// Client uploads export files and hands back their public URLs.
type Client struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
	log        *zap.Logger

	now func() time.Time
}

// NewClient creates a Client for the configured bucket. It returns
// (nil, nil) when the bucket settings are incomplete so the caller can
// run with publishing disabled.
func NewClient(ctx context.Context, cfg config.ArchiveConfig, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("archive")

	if !cfg.Enabled() {
		log.Info("Archive bucket not configured, publishing exports is disabled")
		return nil, nil
	}

	if _, err := url.Parse(cfg.PublicURL); err != nil {
		return nil, fmt.Errorf("invalid archive public URL %q: %w", cfg.PublicURL, err)
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS SDK config for archive: %w", err)
	}

	endpoint := cfg.ResolvedEndpoint()
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	log.Info("Archive client initialized", zap.String("bucket", cfg.Bucket), zap.String("endpoint", endpoint))
	return &Client{
		s3Client:   s3Client,
		bucketName: cfg.Bucket,
		publicURL:  cfg.PublicURL,
		log:        log,
		now:        time.Now,
	}, nil
}

// Key returns the object key an upload of name from workspaceID is
// stored under.
func (c *Client) Key(workspaceID, name string) string {
	return fmt.Sprintf("exports/%s/%s-%s", workspaceID, c.now().UTC().Format("20060102T150405Z"), path.Base(name))
}

// Upload stores body and returns its public URL.
func (c *Client) Upload(ctx context.Context, workspaceID, name string, body []byte) (string, error) {
	if c == nil || c.s3Client == nil {
		return "", fmt.Errorf("archive client not initialized")
	}

	key := c.Key(workspaceID, name)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ACL:           types.ObjectCannedACLPublicRead,
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload export (key: %s): %w", key, err)
	}

	publicURL, err := c.PublicURL(key)
	if err != nil {
		return "", err
	}
	c.log.Info("Export published", zap.String("key", key), zap.String("url", publicURL))
	return publicURL, nil
}

// PublicURL joins key onto the bucket's public base URL.
func (c *Client) PublicURL(key string) (string, error) {
	base, err := url.Parse(c.publicURL)
	if err != nil {
		return "", fmt.Errorf("invalid archive public URL: %w", err)
	}
	base.Path = path.Join("/", base.Path, key)
	return base.String(), nil
}
