package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appconfig "listing_hunter/config"
)

// S3Archiver keeps a copy of every rendered digest in S3-compatible storage.
type S3Archiver struct {
	client *s3.Client
	cfg    appconfig.ArchiveConfig
}

func NewS3Archiver(ctx context.Context, cfg appconfig.ArchiveConfig) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Archiver{client: client, cfg: cfg}, nil
}

// DigestKey names the object a digest sent at t is stored under.
func DigestKey(t time.Time) string {
	return "digests/" + t.UTC().Format("20060102T150405Z") + ".html"
}

// Archive uploads the digest HTML and returns its public URL.
func (a *S3Archiver) Archive(ctx context.Context, sentAt time.Time, html []byte) (string, error) {
	key := DigestKey(sentAt)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(html),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return PublicURL(a.cfg, key), nil
}

// PublicURL returns the public URL for an object key.
func PublicURL(cfg appconfig.ArchiveConfig, key string) string {
	if cfg.Endpoint != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
		if strings.Contains(host, "digitaloceanspaces.com") {
			return fmt.Sprintf("https://%s.%s/%s", cfg.Bucket, host, key)
		}
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(cfg.Endpoint, "/"), cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, key)
}
