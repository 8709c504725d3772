// Package providers implements the storage backends session archives are
// uploaded to. Remote paths are slash-separated and relative to the
// provider's root; providers move bytes verbatim, compression is the
// bundler's job.
package providers

import (
	"context"
	"path"
	"strings"
)

// Provider moves archive files between the local staging area and a
// storage backend.
type Provider interface {
	// Upload copies the file at localPath to remotePath.
	Upload(ctx context.Context, localPath, remotePath string) error
	// Download copies the file at remotePath to localPath, creating
	// parent directories as needed.
	Download(ctx context.Context, remotePath, localPath string) error
	// List returns every remote path under the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the file at remotePath. Deleting a path that does
	// not exist is not an error.
	Delete(ctx context.Context, remotePath string) error
}

// joinKey namespaces a remote path for backends configured with a key
// prefix.
func joinKey(prefix, remotePath string) string {
	if prefix == "" {
		return remotePath
	}
	return path.Join(prefix, remotePath)
}

// stripKey undoes joinKey on keys coming back from a backend listing.
func stripKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}
