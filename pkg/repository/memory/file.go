package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

type fileRepository struct {
	mu    sync.RWMutex
	files map[types.FileID]*model.File
}

func newFileRepository() *fileRepository {
	return &fileRepository{
		files: make(map[types.FileID]*model.File),
	}
}

func copyFile(f *model.File) *model.File {
	copied := *f
	return &copied
}

func (r *fileRepository) Put(ctx context.Context, file *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyFile(file)
	stored.UpdatedAt = time.Now().UTC()
	r.files[stored.ID] = stored
	return nil
}

func (r *fileRepository) Get(ctx context.Context, id types.FileID) (*model.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrFileNotFound, "file not cached", goerr.V("fileID", id))
	}
	return copyFile(file), nil
}
