package video_relay

import (
	"context"
	"fmt"
)

// Uploader relays a finished local artifact to a remote hosting service.
type Uploader interface {
	// Name identifies the hosting service in logs and notifications.
	Name() string
	// Upload stores the file at path remotely, returning a publicly shareable URL.
	Upload(ctx context.Context, path string) (string, error)
}

// UploadError wraps any failure to relay a local artifact to the remote service.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
