package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureOptions configures the Azure Blob Storage backend.
type AzureOptions struct {
	Container        string
	Prefix           string
	ConnectionString string
}

// Azure stores archives in an Azure Blob Storage container.
type Azure struct {
	client    *azblob.Client
	container string
	prefix    string
}

func NewAzure(opts AzureOptions) (*Azure, error) {
	if opts.Container == "" {
		return nil, errors.New("azure container required")
	}
	if opts.ConnectionString == "" {
		return nil, errors.New("azure connection string required")
	}

	client, err := azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}
	return &Azure{
		client:    client,
		container: opts.Container,
		prefix:    strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (p *Azure) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = p.client.UploadFile(ctx, p.container, joinKey(p.prefix, remotePath), f, nil)
	if err != nil {
		return fmt.Errorf("upload %s to azure: %w", remotePath, err)
	}
	return nil
}

func (p *Azure) Download(ctx context.Context, remotePath, localPath string) (err error) {
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

	_, err = p.client.DownloadFile(ctx, p.container, joinKey(p.prefix, remotePath), f, nil)
	if err != nil {
		return fmt.Errorf("download %s from azure: %w", remotePath, err)
	}
	return nil
}

func (p *Azure) List(ctx context.Context, prefix string) ([]string, error) {
	pfx := joinKey(p.prefix, prefix)
	pager := p.client.NewListBlobsFlatPager(p.container, &azblob.ListBlobsFlatOptions{
		Prefix: &pfx,
	})

	var out []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list azure blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				out = append(out, stripKey(p.prefix, *item.Name))
			}
		}
	}
	return out, nil
}

func (p *Azure) Delete(ctx context.Context, remotePath string) error {
	_, err := p.client.DeleteBlob(ctx, p.container, joinKey(p.prefix, remotePath), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete %s from azure: %w", remotePath, err)
	}
	return nil
}
