package slack

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/slack-go/slack"
)

// client implements interfaces.Messenger over the Slack Web API
type client struct {
	api *slack.Client

	botOnce   sync.Once
	botUserID string
	botErr    error
}

var _ interfaces.Messenger = &client{}

// New creates a new Slack messenger with the provided bot token
func New(token string) (interfaces.Messenger, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	return &client{
		api: slack.New(token),
	}, nil
}

// SendMessage posts a plain text message to a conversation
func (c *client) SendMessage(ctx context.Context, conversationID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, conversationID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post message", goerr.V("conversationID", conversationID))
	}
	return nil
}

// SendNewShare posts a new-file-share notification as Block Kit blocks
func (c *client) SendNewShare(ctx context.Context, conversationID string, n *model.ShareNotice) error {
	_, _, err := c.api.PostMessageContext(ctx, conversationID,
		slack.MsgOptionText(shareFallbackText(n), false),
		slack.MsgOptionBlocks(buildShareBlocks(n)...),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post share notification",
			goerr.V("conversationID", conversationID),
			goerr.V("fileID", n.FileID))
	}
	return nil
}

// SendNewComment posts a new-comment notification as Block Kit blocks
func (c *client) SendNewComment(ctx context.Context, conversationID string, n *model.CommentNotice) error {
	_, _, err := c.api.PostMessageContext(ctx, conversationID,
		slack.MsgOptionText(commentFallbackText(n), false),
		slack.MsgOptionBlocks(buildCommentBlocks(n)...),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post comment notification",
			goerr.V("conversationID", conversationID),
			goerr.V("fileID", n.FileID))
	}
	return nil
}

// SendDigest posts one combined batch of buffered notifications
func (c *client) SendDigest(ctx context.Context, conversationID string, d *model.DigestBatch) error {
	if len(d.Comments) == 0 {
		return nil
	}

	_, _, err := c.api.PostMessageContext(ctx, conversationID,
		slack.MsgOptionText(digestTitle, false),
		slack.MsgOptionBlocks(buildDigestBlocks(d)...),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post digest",
			goerr.V("conversationID", conversationID),
			goerr.V("count", len(d.Comments)))
	}
	return nil
}

// OpenDirectConversation finds or creates the DM conversation with a user
func (c *client) OpenDirectConversation(ctx context.Context, userID string) (string, error) {
	ch, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to open DM conversation", goerr.V("userID", userID))
	}
	return ch.ID, nil
}

// BotUserID returns the bot's own user ID, resolved once via auth.test
func (c *client) BotUserID(ctx context.Context) (string, error) {
	c.botOnce.Do(func() {
		resp, err := c.api.AuthTestContext(ctx)
		if err != nil {
			c.botErr = goerr.Wrap(err, "failed to call auth.test")
			return
		}
		c.botUserID = resp.UserID
	})
	return c.botUserID, c.botErr
}
