package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = input
	b, _ := io.ReadAll(input.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func newTestStore(client s3Client) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    "proofs",
		publicURL: "https://cdn.example.com/proofs",
		newID:     func() string { return "fixed-id" },
	}
}

func TestProofKey(t *testing.T) {
	if got := ProofKey(12, "abc", ".jpg"); got != "chores/12/abc.jpg" {
		t.Errorf("ProofKey = %q", got)
	}
}

func TestUploadProof(t *testing.T) {
	fake := &fakeS3{}
	s := newTestStore(fake)

	url, err := s.UploadProof(context.Background(), 7, "Bins.JPG", "", strings.NewReader("jpegdata"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example.com/proofs/chores/7/fixed-id.jpg" {
		t.Errorf("url = %q", url)
	}
	if *fake.input.Bucket != "proofs" || *fake.input.Key != "chores/7/fixed-id.jpg" {
		t.Errorf("bucket/key = %s/%s", *fake.input.Bucket, *fake.input.Key)
	}
	if *fake.input.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", *fake.input.ContentType)
	}
	if fake.body != "jpegdata" || *fake.input.ContentLength != int64(len("jpegdata")) {
		t.Errorf("body = %q len %d", fake.body, *fake.input.ContentLength)
	}
}

func TestUploadProofRejectsNonImage(t *testing.T) {
	s := newTestStore(&fakeS3{})
	_, err := s.UploadProof(context.Background(), 1, "notes.txt", "text/plain", strings.NewReader("hi"))
	if !errors.Is(err, ErrNotImage) {
		t.Errorf("err = %v, want ErrNotImage", err)
	}
}

func TestUploadProofTooLarge(t *testing.T) {
	s := newTestStore(&fakeS3{})
	big := strings.NewReader(strings.Repeat("x", MaxImageBytes+1))
	_, err := s.UploadProof(context.Background(), 1, "a.png", "image/png", big)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestUploadProofClientError(t *testing.T) {
	s := newTestStore(&fakeS3{err: errors.New("connection refused")})
	_, err := s.UploadProof(context.Background(), 1, "a.png", "image/png", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "upload to s3") {
		t.Errorf("err = %v", err)
	}
}

func TestUnconfigured(t *testing.T) {
	s := NewS3Store(S3Config{Bucket: "proofs"})
	_, err := s.UploadProof(context.Background(), 1, "a.png", "image/png", strings.NewReader("x"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestPublicURLDefaultsToEndpoint(t *testing.T) {
	s := NewS3Store(S3Config{Endpoint: "https://s3.example.com/", Bucket: "proofs"})
	if s.publicURL != "https://s3.example.com/proofs" {
		t.Errorf("publicURL = %q", s.publicURL)
	}
}
