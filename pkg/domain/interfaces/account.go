package interfaces

import (
	"context"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// AccountRepository defines data access for linked Drive accounts
type AccountRepository interface {
	// Put creates or replaces an account (upsert)
	Put(ctx context.Context, account *model.Account) error

	// Get retrieves an account by Drive user ID.
	// Returns types.ErrAccountNotFound when missing.
	Get(ctx context.Context, id types.AccountID) (*model.Account, error)

	// GetBySlackUserID retrieves the account linked to a Slack user.
	// Returns types.ErrAccountNotFound when missing.
	GetBySlackUserID(ctx context.Context, slackUserID string) (*model.Account, error)

	// GetByChannelID resolves an inbound webhook ping to its account.
	// Returns types.ErrChannelNotFound for unknown channel IDs.
	GetByChannelID(ctx context.Context, channelID types.ChannelID) (*model.Account, error)

	// List returns all accounts
	List(ctx context.Context) ([]*model.Account, error)

	// Delete removes an account. Subscriptions are cascaded by the caller.
	Delete(ctx context.Context, id types.AccountID) error
}
