// Package blob stores proof-of-completion images on S3-compatible storage.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxImageBytes bounds a single proof upload.
const MaxImageBytes = 10 << 20

var (
	ErrNotConfigured = errors.New("blob storage not configured")
	ErrNotImage      = errors.New("proof must be an image")
	ErrTooLarge      = fmt.Errorf("proof exceeds %d bytes", MaxImageBytes)
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// PublicURL is the base under which uploaded keys are served,
	// e.g. https://cdn.example.com/roomies.
	PublicURL string `yaml:"public_url"`
}

// Configured reports whether enough is set to upload.
func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// S3Store uploads proof images and returns their public URL.
type S3Store struct {
	client    s3Client
	bucket    string
	publicURL string
	newID     func() string
}

// NewS3Store returns a store for cfg. An unconfigured store returns
// ErrNotConfigured from every upload.
func NewS3Store(cfg S3Config) *S3Store {
	s := &S3Store{
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		newID:     uuid.NewString,
	}
	if cfg.Configured() {
		s.client = newS3Client(cfg)
	}
	if s.publicURL == "" && cfg.Endpoint != "" {
		s.publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return s
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// ProofKey builds the object key chores/{choreID}/{id}{ext}.
func ProofKey(choreID int64, id, ext string) string {
	return path.Join("chores", fmt.Sprint(choreID), id+ext)
}

// UploadProof stores body under a fresh key for the chore.
func (s *S3Store) UploadProof(ctx context.Context, choreID int64, filename, contentType string, body io.Reader) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}

	ext := strings.ToLower(path.Ext(filename))
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%q: %w", contentType, ErrNotImage)
	}
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read proof: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", ErrTooLarge
	}

	key := ProofKey(choreID, s.newID(), ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return s.publicURL + "/" + key, nil
}
