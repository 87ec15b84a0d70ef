// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"resty.dev/v3"
)

// Fetcher downloads an asset from one source scheme into a local file.
// Implementations write to dest directly; the bootstrapper handles temp
// files, checksums, and atomic placement.
type Fetcher interface {
	// Scheme returns the URL scheme this fetcher handles.
	Scheme() string
	// Fetch downloads source into dest.
	Fetch(ctx context.Context, source, dest string) error
}

// HTTPFetcher downloads https:// and http:// sources.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates an HTTP fetcher with the given client. A nil
// client gets a default one.
func NewHTTPFetcher(client *resty.Client) *HTTPFetcher {
	if client == nil {
		client = resty.New()
	}
	return &HTTPFetcher{client: client}
}

// Scheme returns "https". The fetcher also accepts plain http sources; the
// bootstrapper registers it under both schemes.
func (f *HTTPFetcher) Scheme() string { return "https" }

// Fetch streams the response body into dest. Non-2xx responses fail.
func (f *HTTPFetcher) Fetch(ctx context.Context, source, dest string) error {
	res, err := f.client.R().
		SetContext(ctx).
		SetOutputFileName(dest).
		SetSaveResponse(true).
		Get(source)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", source, err)
	}
	if res.IsError() {
		_ = os.Remove(dest) // The error body may have been saved
		return fmt.Errorf("fetching %s: unexpected status %s", source, res.Status())
	}
	return nil
}

// S3Fetcher downloads s3://bucket/key sources.
type S3Fetcher struct {
	// Endpoint is the S3-compatible endpoint host. Empty means AWS.
	Endpoint string
	// Secure selects TLS transport.
	Secure bool

	// newClient is a seam for tests.
	newClient func(endpoint string, secure bool) (s3Client, error)
}

// s3Client is the subset of the minio client the fetcher needs.
type s3Client interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// NewS3Fetcher creates an S3 fetcher. Credentials come from the standard
// AWS environment variables; endpoint defaults to AWS S3 and can be
// overridden via S3_ENDPOINT for S3-compatible stores.
func NewS3Fetcher() *S3Fetcher {
	endpoint := os.Getenv("S3_ENDPOINT")
	secure := true
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	return &S3Fetcher{
		Endpoint: endpoint,
		Secure:   secure,
		newClient: func(endpoint string, secure bool) (s3Client, error) {
			return minio.New(endpoint, &minio.Options{
				Creds:  credentials.NewEnvAWS(),
				Secure: secure,
			})
		},
	}
}

// Scheme returns "s3".
func (f *S3Fetcher) Scheme() string { return "s3" }

// Fetch downloads the object behind an s3://bucket/key URL into dest.
func (f *S3Fetcher) Fetch(ctx context.Context, source, dest string) error {
	u, err := url.Parse(source)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return fmt.Errorf("invalid s3 source %q", source)
	}
	bucket := u.Host
	object := strings.TrimPrefix(u.Path, "/")
	if object == "" {
		return fmt.Errorf("s3 source %q has no object key", source)
	}

	client, err := f.newClient(f.Endpoint, f.Secure)
	if err != nil {
		return fmt.Errorf("creating s3 client: %w", err)
	}
	if err := client.FGetObject(ctx, bucket, object, dest, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("fetching s3://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// FileFetcher copies file:// sources, used for pre-staged assets on
// shared volumes.
type FileFetcher struct{}

// Scheme returns "file".
func (f *FileFetcher) Scheme() string { return "file" }

// Fetch copies the source file into dest.
func (f *FileFetcher) Fetch(ctx context.Context, source, dest string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(source)
	if err != nil || u.Scheme != "file" {
		return fmt.Errorf("invalid file source %q", source)
	}

	src, err := os.Open(u.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", u.Path, err)
	}
	defer func() { _ = src.Close() }() // Read-only file; close error non-critical

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying %s: %w", u.Path, err)
	}
	return nil
}
