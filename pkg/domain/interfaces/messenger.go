package interfaces

import (
	"context"

	"github.com/secmon-lab/gyges/pkg/domain/model"
)

// Messenger is the outbound send boundary to the chat platform. The core
// only hands over typed payloads; message rendering lives behind this
// interface.
type Messenger interface {
	// SendMessage posts a plain text message to a conversation
	SendMessage(ctx context.Context, conversationID, text string) error

	// SendNewShare posts a new-file-share notification
	SendNewShare(ctx context.Context, conversationID string, n *model.ShareNotice) error

	// SendNewComment posts a new-comment notification
	SendNewComment(ctx context.Context, conversationID string, n *model.CommentNotice) error

	// SendDigest posts one combined batch of buffered notifications
	SendDigest(ctx context.Context, conversationID string, d *model.DigestBatch) error

	// OpenDirectConversation finds or creates the DM conversation with a
	// user and returns its ID
	OpenDirectConversation(ctx context.Context, userID string) (string, error)

	// BotUserID returns the bot's own user ID. Subscriptions are keyed
	// by it so multiple bot installs can share one conversation.
	BotUserID(ctx context.Context) (string, error)
}
