package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// DigestTick flushes the digest buffers of every subscription whose fire
// time matches the given instant. Daily subscriptions match on the UTC
// hour, weekly ones additionally on the UTC weekday.
//
// Delivery is at-least-once: a buffer is cleared only after its digest
// was confirmed sent. A send failure keeps every contributing buffer
// intact for the next matching tick.
func (uc *UseCases) DigestTick(ctx context.Context, now time.Time) error {
	hour := now.UTC().Hour()
	weekday := now.UTC().Weekday()

	var due []*model.Subscription

	daily, err := uc.repo.Subscription().ListByState(ctx, types.DeliveryDaily)
	if err != nil {
		return err
	}
	for _, sub := range daily {
		if sub.FireHourUTC == hour && len(sub.Pending) > 0 {
			due = append(due, sub)
		}
	}

	weekly, err := uc.repo.Subscription().ListByState(ctx, types.DeliveryWeekly)
	if err != nil {
		return err
	}
	for _, sub := range weekly {
		if sub.FireHourUTC == hour && sub.FireWeekday == weekday && len(sub.Pending) > 0 {
			due = append(due, sub)
		}
	}

	if len(due) == 0 {
		return nil
	}

	// One digest per conversation, regardless of how many subscriptions
	// fed it.
	byConv := map[string][]*model.Subscription{}
	var convs []string
	for _, sub := range due {
		if _, ok := byConv[sub.ConversationID]; !ok {
			convs = append(convs, sub.ConversationID)
		}
		byConv[sub.ConversationID] = append(byConv[sub.ConversationID], sub)
	}
	sort.Strings(convs)

	for _, conv := range convs {
		uc.flushConversation(ctx, conv, byConv[conv])
	}

	return nil
}

func (uc *UseCases) flushConversation(ctx context.Context, conversationID string, subs []*model.Subscription) {
	batch := &model.DigestBatch{ConversationID: conversationID}
	for _, sub := range subs {
		batch.Comments = append(batch.Comments, sub.Pending...)
	}

	if err := uc.messenger.SendDigest(ctx, conversationID, batch); err != nil {
		logging.From(ctx).Warn("failed to send digest, keeping buffers",
			"error", err,
			"conversationID", conversationID,
			"count", len(batch.Comments))
		return
	}

	for _, sub := range subs {
		sub.ClearPending()
		sub.UpdatedAt = uc.now()
		if err := uc.repo.Subscription().Update(ctx, sub); err != nil {
			// The digest went out but the clear did not stick; the
			// next tick will resend these entries.
			logging.From(ctx).Error("failed to clear digest buffer",
				"error", err,
				"subscriptionID", sub.ID)
		}
	}

	logging.From(ctx).Info("sent digest",
		"conversationID", conversationID,
		"subscriptions", len(subs),
		"count", len(batch.Comments))
}
