// Package upload ships a finished result directory to S3-compatible
// storage.
package upload

import "context"

// Uploader uploads benchmark results to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload uploads all files in localDir. The directory basename is
	// used as a sub-prefix under the configured remote prefix.
	Upload(ctx context.Context, localDir string) error

	// UploadFile uploads a single file directly under the configured
	// prefix.
	UploadFile(ctx context.Context, localPath string) error
}
