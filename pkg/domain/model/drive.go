package model

import (
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// DriveUser is the provider-side identity of an authorized account
type DriveUser struct {
	ID        types.AccountID
	Email     string
	Name      string
	AvatarURL string
}

// Change is one entry of the Drive change feed
type Change struct {
	Kind   string // "file" or "drive"; only "file" is actioned
	FileID types.FileID
	Time   time.Time
}

// ChangeFeed is one page of the change feed. NewCursor is the frontier to
// commit after the batch is fully processed; empty means the page did not
// reach the end of the feed.
type ChangeFeed struct {
	Changes   []Change
	NewCursor string
}

// FileMetadata is the provider's current view of a file
type FileMetadata struct {
	ID             types.FileID
	Name           string
	URL            string
	IconURL        string
	MimeType       string
	OwnedByMe      bool
	OwnerName      string
	OwnerEmail     string
	OwnerAvatarURL string
	SharedWithMeAt time.Time
	ModifiedAt     time.Time
}

// Comment is the most recent top-level comment on a file
type Comment struct {
	ID              string
	Content         string
	QuotedContent   string
	AuthorName      string
	AuthorEmail     string
	AuthorAvatarURL string
	ModifiedAt      time.Time
	ReplyCount      int
}

// WatchChannel is a provider-side change watch registration
type WatchChannel struct {
	ID         types.ChannelID
	ResourceID string
	ExpiresAt  time.Time
}

// OAuthToken is the credential pair returned by the token endpoint
type OAuthToken struct {
	AccessToken  string `masq:"secret"`
	RefreshToken string `masq:"secret"`
	ExpiresAt    time.Time
	IDToken      string `masq:"secret"`
}
