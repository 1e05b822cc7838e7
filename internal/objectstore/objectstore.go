// Package objectstore probes and retrieves remote-object references
// (s3://, gs://, http(s)://) used as file values in run sheets.
package objectstore

import (
	"context"
	"strings"
)

var remotePrefixes = []string{"s3://", "gs://", "http://", "https://"}

// IsRemote reports whether a path names a remote object rather than a
// local file.
func IsRemote(path string) bool {
	for _, p := range remotePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Store retrieves remote objects into a local directory.
type Store interface {
	// Download fetches path into destDir and returns the local path.
	Download(ctx context.Context, path, destDir string) (string, error)
}
