package model

import (
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// ShareNotice is the payload for a "file newly shared with the account"
// notification. It always goes to the account's home conversation.
type ShareNotice struct {
	FileID         types.FileID
	FileName       string
	FileURL        string
	FileIconURL    string
	FileType       string
	OwnerName      string
	OwnerEmail     string
	OwnerAvatarURL string
	SharedAt       time.Time
}

// CommentNotice is the payload for a new top-level comment on a
// subscribed file. The same struct is buffered for digest delivery.
type CommentNotice struct {
	SubscriptionID  types.SubscriptionID
	FileID          types.FileID
	FileName        string
	FileURL         string
	FileIconURL     string
	CommentID       string
	CommentContent  string
	QuotedContent   string
	AuthorName      string
	AuthorEmail     string
	AuthorAvatarURL string
	CommentedAt     time.Time
}

// DigestBatch is one combined flush of all buffered notifications for a
// conversation.
type DigestBatch struct {
	ConversationID string
	Comments       []CommentNotice
}
