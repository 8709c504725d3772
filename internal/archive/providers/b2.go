package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Backblaze/blazer/b2"
)

// B2Options configures the Backblaze B2 backend.
type B2Options struct {
	Bucket         string
	Prefix         string
	AccountID      string
	ApplicationKey string
}

// B2 stores archives in a Backblaze B2 bucket.
type B2 struct {
	bucket *b2.Bucket
	prefix string
}

func NewB2(ctx context.Context, opts B2Options) (*B2, error) {
	if opts.Bucket == "" {
		return nil, errors.New("b2 bucket required")
	}
	if opts.AccountID == "" || opts.ApplicationKey == "" {
		return nil, errors.New("b2 account id and application key required")
	}

	client, err := b2.NewClient(ctx, opts.AccountID, opts.ApplicationKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open b2 bucket: %w", err)
	}
	return &B2{
		bucket: bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (p *B2) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	w := p.bucket.Object(joinKey(p.prefix, remotePath)).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s to b2: %w", remotePath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s to b2: %w", remotePath, err)
	}
	return nil
}

func (p *B2) Download(ctx context.Context, remotePath, localPath string) (err error) {
	r := p.bucket.Object(joinKey(p.prefix, remotePath)).NewReader(ctx)
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
		return fmt.Errorf("download %s from b2: %w", remotePath, err)
	}
	return nil
}

func (p *B2) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	it := p.bucket.List(ctx, b2.ListPrefix(joinKey(p.prefix, prefix)))
	for it.Next() {
		out = append(out, stripKey(p.prefix, it.Object().Name()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list b2 objects: %w", err)
	}
	return out, nil
}

func (p *B2) Delete(ctx context.Context, remotePath string) error {
	err := p.bucket.Object(joinKey(p.prefix, remotePath)).Delete(ctx)
	if err != nil && !b2.IsNotExist(err) {
		return fmt.Errorf("delete %s from b2: %w", remotePath, err)
	}
	return nil
}
