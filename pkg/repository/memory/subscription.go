package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// tripleKey enforces the uniqueness invariant on (conversation, bot, file)
type tripleKey struct {
	conversationID string
	botID          string
	fileID         types.FileID
}

type subscriptionRepository struct {
	mu      sync.RWMutex
	subs    map[types.SubscriptionID]*model.Subscription
	triples map[tripleKey]types.SubscriptionID
}

func newSubscriptionRepository() *subscriptionRepository {
	return &subscriptionRepository{
		subs:    make(map[types.SubscriptionID]*model.Subscription),
		triples: make(map[tripleKey]types.SubscriptionID),
	}
}

func copySubscription(s *model.Subscription) *model.Subscription {
	copied := *s
	if s.Pending != nil {
		copied.Pending = make([]model.CommentNotice, len(s.Pending))
		copy(copied.Pending, s.Pending)
	}
	return &copied
}

func keyOf(s *model.Subscription) tripleKey {
	return tripleKey{
		conversationID: s.ConversationID,
		botID:          s.BotID,
		fileID:         s.FileID,
	}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(sub)
	if existing, exists := r.triples[key]; exists {
		return goerr.Wrap(types.ErrSubscriptionExists, "subscription already exists",
			goerr.V("conversationID", sub.ConversationID),
			goerr.V("fileID", sub.FileID),
			goerr.V("existingID", existing),
		)
	}

	stored := copySubscription(sub)
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	r.subs[stored.ID] = stored
	r.triples[key] = stored.ID
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id types.SubscriptionID) (*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subs[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrSubscriptionNotFound, "subscription not found", goerr.V("subscriptionID", id))
	}
	return copySubscription(sub), nil
}

func (r *subscriptionRepository) GetByConversationAndFile(ctx context.Context, conversationID, botID string, fileID types.FileID) (*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := tripleKey{conversationID: conversationID, botID: botID, fileID: fileID}
	id, exists := r.triples[key]
	if !exists {
		return nil, goerr.Wrap(types.ErrSubscriptionNotFound, "subscription not found",
			goerr.V("conversationID", conversationID),
			goerr.V("fileID", fileID),
		)
	}
	return copySubscription(r.subs[id]), nil
}

func (r *subscriptionRepository) ListByAccountAndFile(ctx context.Context, accountID types.AccountID, fileID types.FileID) ([]*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Subscription
	for _, sub := range r.subs {
		if sub.AccountID == accountID && sub.FileID == fileID {
			result = append(result, copySubscription(sub))
		}
	}
	sortSubscriptions(result)
	return result, nil
}

func (r *subscriptionRepository) ListByConversation(ctx context.Context, conversationID string) ([]*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Subscription
	for _, sub := range r.subs {
		if sub.ConversationID == conversationID {
			result = append(result, copySubscription(sub))
		}
	}
	sortSubscriptions(result)
	return result, nil
}

func (r *subscriptionRepository) ListByState(ctx context.Context, state types.DeliveryState) ([]*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Subscription
	for _, sub := range r.subs {
		if sub.State == state {
			result = append(result, copySubscription(sub))
		}
	}
	sortSubscriptions(result)
	return result, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.subs[sub.ID]
	if !exists {
		return goerr.Wrap(types.ErrSubscriptionNotFound, "subscription not found", goerr.V("subscriptionID", sub.ID))
	}

	stored := copySubscription(sub)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()

	// keep the triple index consistent when the row moved conversations
	delete(r.triples, keyOf(existing))
	r.subs[stored.ID] = stored
	r.triples[keyOf(stored)] = stored.ID
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, id types.SubscriptionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subs[id]
	if !exists {
		return goerr.Wrap(types.ErrSubscriptionNotFound, "subscription not found", goerr.V("subscriptionID", id))
	}

	delete(r.triples, keyOf(sub))
	delete(r.subs, id)
	return nil
}

func (r *subscriptionRepository) DeleteByAccount(ctx context.Context, accountID types.AccountID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for id, sub := range r.subs {
		if sub.AccountID == accountID {
			delete(r.triples, keyOf(sub))
			delete(r.subs, id)
			removed++
		}
	}
	return removed, nil
}

func sortSubscriptions(subs []*model.Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].ID < subs[j].ID
	})
}
