package model

import (
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// File is a cached copy of Drive file metadata. Rows are created lazily
// the first time a subscription or notification needs them, renamed when
// the provider reports a new name, and never deleted.
type File struct {
	ID         types.FileID
	Name       string
	IconURL    string
	OwnerEmail string
	URL        string
	UpdatedAt  time.Time
}
