package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSOptions configures the Google Cloud Storage backend. An empty
// CredentialsFile falls back to application default credentials.
type GCSOptions struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
}

// GCS stores archives in a Google Cloud Storage bucket.
type GCS struct {
	bucket *storage.BucketHandle
	prefix string
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCS, error) {
	if opts.Bucket == "" {
		return nil, errors.New("gcs bucket required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{
		bucket: client.Bucket(opts.Bucket),
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (p *GCS) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	w := p.bucket.Object(joinKey(p.prefix, remotePath)).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s to gcs: %w", remotePath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s to gcs: %w", remotePath, err)
	}
	return nil
}

func (p *GCS) Download(ctx context.Context, remotePath, localPath string) (err error) {
	r, err := p.bucket.Object(joinKey(p.prefix, remotePath)).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open %s in gcs: %w", remotePath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("download %s from gcs: %w", remotePath, err)
	}
	return nil
}

func (p *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	it := p.bucket.Objects(ctx, &storage.Query{Prefix: joinKey(p.prefix, prefix)})

	var out []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gcs objects: %w", err)
		}
		out = append(out, stripKey(p.prefix, attrs.Name))
	}
	return out, nil
}

func (p *GCS) Delete(ctx context.Context, remotePath string) error {
	err := p.bucket.Object(joinKey(p.prefix, remotePath)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s from gcs: %w", remotePath, err)
	}
	return nil
}
