package interfaces

import (
	"context"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// SubscriptionRepository defines data access for file subscriptions
type SubscriptionRepository interface {
	// Create inserts a new subscription. Returns
	// types.ErrSubscriptionExists when the (conversation, bot, file)
	// triple is already present; a second row is never created.
	Create(ctx context.Context, sub *model.Subscription) error

	// Get retrieves a subscription by ID.
	// Returns types.ErrSubscriptionNotFound when missing.
	Get(ctx context.Context, id types.SubscriptionID) (*model.Subscription, error)

	// GetByConversationAndFile looks up the unique subscription for the
	// triple. Returns types.ErrSubscriptionNotFound when missing.
	GetByConversationAndFile(ctx context.Context, conversationID, botID string, fileID types.FileID) (*model.Subscription, error)

	// ListByAccountAndFile returns all subscriptions of an account for
	// one file, across conversations.
	ListByAccountAndFile(ctx context.Context, accountID types.AccountID, fileID types.FileID) ([]*model.Subscription, error)

	// ListByConversation returns all subscriptions of a conversation
	ListByConversation(ctx context.Context, conversationID string) ([]*model.Subscription, error)

	// ListByState returns all subscriptions in the given delivery state
	ListByState(ctx context.Context, state types.DeliveryState) ([]*model.Subscription, error)

	// Update replaces an existing subscription.
	// Returns types.ErrSubscriptionNotFound when missing.
	Update(ctx context.Context, sub *model.Subscription) error

	// Delete removes a subscription by ID
	Delete(ctx context.Context, id types.SubscriptionID) error

	// DeleteByAccount removes all subscriptions of an account and
	// returns how many were removed. Used by the unauthorize cascade.
	DeleteByAccount(ctx context.Context, accountID types.AccountID) (int, error)
}
