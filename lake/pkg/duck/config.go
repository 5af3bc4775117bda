package duck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultS3Region = "us-east-1"

// S3Config holds credentials and addressing for S3-compatible lake storage.
// Empty credentials mean the default AWS credential chain (instance role, IRSA).
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string
	UseSSL          bool
	URLStyle        string
}

// custom reports whether the endpoint is an S3-compatible service other than AWS.
func (c *S3Config) custom() bool {
	return c.Endpoint != "" && !strings.Contains(c.Endpoint, "amazonaws.com")
}

func (c *S3Config) secretSQL() string {
	var b strings.Builder
	b.WriteString("CREATE SECRET IF NOT EXISTS lake_s3 (TYPE s3")
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		fmt.Fprintf(&b, ", KEY_ID %s, SECRET %s", quoteLiteral(c.AccessKeyID), quoteLiteral(c.SecretAccessKey))
	} else {
		b.WriteString(", PROVIDER credential_chain")
	}
	if c.Endpoint != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(c.Endpoint, "http://"), "https://")
		fmt.Fprintf(&b, ", ENDPOINT %s", quoteLiteral(host))
	}
	if c.Region != "" {
		fmt.Fprintf(&b, ", REGION %s", quoteLiteral(c.Region))
	}
	style := c.URLStyle
	if style == "" {
		style = "path"
	}
	fmt.Fprintf(&b, ", URL_STYLE %s, USE_SSL %t)", quoteLiteral(style), c.UseSSL)
	return b.String()
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// LoadS3ConfigFromEnv reads S3_* (falling back to AWS_*) variables. Both credentials unset
// selects the default credential chain; exactly one set is an error.
func LoadS3ConfigFromEnv() (*S3Config, error) {
	cfg := &S3Config{
		AccessKeyID:     firstEnv("S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"),
		SecretAccessKey: firstEnv("S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"),
		Endpoint:        firstEnv("S3_ENDPOINT", "AWS_ENDPOINT_URL"),
		Region:          firstEnv("S3_REGION", "AWS_REGION"),
		URLStyle:        "path",
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("S3 access key ID and secret access key must be set together (leave both unset to use the default credential chain)")
	}
	if cfg.Region == "" {
		cfg.Region = defaultS3Region
	}
	cfg.UseSSL = !cfg.custom()
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		cfg.UseSSL = v == "true" || v == "1"
	}
	if v := os.Getenv("S3_URL_STYLE"); v != "" {
		cfg.URLStyle = v
	}
	return cfg, nil
}

// EnsureBucket creates the storage bucket on a local S3-compatible endpoint if it is missing.
// Remote and AWS endpoints are left alone.
func EnsureBucket(ctx context.Context, log *slog.Logger, storageURI string, cfg *S3Config) error {
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	local := strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") || strings.Contains(host, "host.docker.internal")
	if !local {
		return nil
	}
	bucket, _, _ := strings.Cut(strings.TrimPrefix(storageURI, "s3://"), "/")
	if bucket == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return fmt.Errorf("failed to create AWS config: %w", err)
	}
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &endpoint
		o.UsePathStyle = true
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket}); err == nil {
		return nil
	}
	log.Info("duck: creating bucket", "bucket", bucket, "endpoint", cfg.Endpoint)
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &bucket}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// PrepareS3ConfigForStorageURI returns nil for non-S3 storage, otherwise the S3 config from
// the environment with the bucket ensured on local endpoints.
func PrepareS3ConfigForStorageURI(ctx context.Context, log *slog.Logger, storageURI string) (*S3Config, error) {
	if !strings.HasPrefix(storageURI, "s3://") {
		return nil, nil
	}
	cfg, err := LoadS3ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
	}
	if cfg.custom() && cfg.AccessKeyID == "" {
		return nil, fmt.Errorf("S3-compatible endpoint %s requires explicit credentials", cfg.Endpoint)
	}
	if err := EnsureBucket(ctx, log, storageURI, cfg); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return cfg, nil
}
