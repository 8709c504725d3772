package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the Amazon S3 backend. Leaving the static
// credentials empty uses the SDK's default chain (environment, shared
// config, instance role).
type S3Options struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3 stores archives in an Amazon S3 bucket.
type S3 struct {
	bucket     string
	prefix     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3{
		bucket:     opts.Bucket,
		prefix:     strings.Trim(opts.Prefix, "/"),
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
	}, nil
}

func (p *S3) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(joinKey(p.prefix, remotePath)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3: %w", remotePath, err)
	}
	return nil
}

func (p *S3) Download(ctx context.Context, remotePath, localPath string) (err error) {
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

	_, err = p.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(joinKey(p.prefix, remotePath)),
	})
	if err != nil {
		return fmt.Errorf("download %s from s3: %w", remotePath, err)
	}
	return nil
}

func (p *S3) List(ctx context.Context, prefix string) ([]string, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
	}
	if pfx := joinKey(p.prefix, prefix); pfx != "" {
		in.Prefix = aws.String(pfx)
	}

	var out []string
	pag := s3.NewListObjectsV2Paginator(p.client, in)
	for pag.HasMorePages() {
		page, err := pag.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			out = append(out, stripKey(p.prefix, aws.ToString(obj.Key)))
		}
	}
	return out, nil
}

func (p *S3) Delete(ctx context.Context, remotePath string) error {
	// DeleteObject is a no-op for missing keys, which matches the
	// Provider contract.
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(joinKey(p.prefix, remotePath)),
	})
	if err != nil {
		return fmt.Errorf("delete %s from s3: %w", remotePath, err)
	}
	return nil
}
