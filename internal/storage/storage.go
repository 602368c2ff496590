package storage

import "context"

// MediaStore persists user-uploaded image blobs in remote object storage.
// Upload returns an opaque ref the store can later resolve for Delete.
type MediaStore interface {
	Upload(ctx context.Context, blob []byte) (string, error)
	Delete(ctx context.Context, ref string) error
}
