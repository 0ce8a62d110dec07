package interfaces

import (
	"context"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// FileRepository defines data access for the file metadata cache
type FileRepository interface {
	// Put creates or replaces a cached file row (upsert)
	Put(ctx context.Context, file *model.File) error

	// Get retrieves a cached file by Drive file ID.
	// Returns types.ErrFileNotFound when not cached.
	Get(ctx context.Context, id types.FileID) (*model.File, error)
}
