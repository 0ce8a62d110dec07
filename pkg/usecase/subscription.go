package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// SubscribeStatus is the outcome of a subscribe attempt. All four are
// normal results; only provider or storage failures surface as errors.
type SubscribeStatus string

const (
	// SubscribeOK means a new subscription was created
	SubscribeOK SubscribeStatus = "ok"

	// SubscribeDuplicated means an active subscription for the triple
	// already existed; nothing changed.
	SubscribeDuplicated SubscribeStatus = "duplicated"

	// SubscribeResumed means a muted subscription for the triple
	// existed and was resumed instead of duplicated.
	SubscribeResumed SubscribeStatus = "resumed"

	// SubscribeNotFound means the file is gone or not accessible with
	// the account's credentials.
	SubscribeNotFound SubscribeStatus = "not_found"
)

// Subscribe binds a conversation to comment events of one file. At most
// one subscription exists per (conversation, bot, file) triple: a second
// attempt reports Duplicated, or Resumed when the existing one was muted.
func (uc *UseCases) Subscribe(ctx context.Context, conversationID, slackUserID string, fileID types.FileID) (SubscribeStatus, *model.Subscription, error) {
	account, err := uc.repo.Account().GetBySlackUserID(ctx, slackUserID)
	if err != nil {
		return "", nil, err
	}

	if err := uc.EnsureValidToken(ctx, account); err != nil {
		return "", nil, err
	}

	meta, err := uc.drive.GetFile(ctx, account.AccessToken, fileID)
	if err != nil {
		if errors.Is(err, types.ErrFileNotFound) {
			return SubscribeNotFound, nil, nil
		}
		return "", nil, err
	}

	if err := uc.repo.File().Put(ctx, &model.File{
		ID:         meta.ID,
		Name:       meta.Name,
		IconURL:    meta.IconURL,
		OwnerEmail: meta.OwnerEmail,
		URL:        meta.URL,
		UpdatedAt:  uc.now(),
	}); err != nil {
		return "", nil, err
	}

	botID, err := uc.messenger.BotUserID(ctx)
	if err != nil {
		return "", nil, err
	}

	if existing, err := uc.repo.Subscription().GetByConversationAndFile(ctx, conversationID, botID, fileID); err == nil {
		return uc.reviveExisting(ctx, existing)
	} else if !errors.Is(err, types.ErrSubscriptionNotFound) {
		return "", nil, err
	}

	now := uc.now()
	sub := &model.Subscription{
		ID:             types.SubscriptionID(uuid.NewString()),
		ConversationID: conversationID,
		BotID:          botID,
		AccountID:      account.ID,
		FileID:         fileID,
		State:          types.DeliveryRealtime,
		FireHourUTC:    uc.digestHourUTC,
		FireWeekday:    uc.digestWeekdayUTC,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.repo.Subscription().Create(ctx, sub); err != nil {
		// Lost a race against a concurrent subscribe for the same
		// triple; report on the row that won.
		if errors.Is(err, types.ErrSubscriptionExists) {
			existing, getErr := uc.repo.Subscription().GetByConversationAndFile(ctx, conversationID, botID, fileID)
			if getErr != nil {
				return "", nil, getErr
			}
			return uc.reviveExisting(ctx, existing)
		}
		return "", nil, err
	}

	return SubscribeOK, sub, nil
}

func (uc *UseCases) reviveExisting(ctx context.Context, sub *model.Subscription) (SubscribeStatus, *model.Subscription, error) {
	if sub.State != types.DeliveryMuted {
		return SubscribeDuplicated, sub, nil
	}

	sub.Resume()
	sub.UpdatedAt = uc.now()
	if err := uc.repo.Subscription().Update(ctx, sub); err != nil {
		return "", nil, err
	}
	return SubscribeResumed, sub, nil
}

// Unsubscribe removes the subscription for the triple in the given
// conversation.
func (uc *UseCases) Unsubscribe(ctx context.Context, conversationID string, fileID types.FileID) error {
	botID, err := uc.messenger.BotUserID(ctx)
	if err != nil {
		return err
	}

	sub, err := uc.repo.Subscription().GetByConversationAndFile(ctx, conversationID, botID, fileID)
	if err != nil {
		return err
	}

	return uc.repo.Subscription().Delete(ctx, sub.ID)
}

// MuteSubscription pauses delivery. The pre-mute state is remembered so
// Resume restores exactly it.
func (uc *UseCases) MuteSubscription(ctx context.Context, id types.SubscriptionID) error {
	sub, err := uc.repo.Subscription().Get(ctx, id)
	if err != nil {
		return err
	}

	sub.Mute()
	sub.UpdatedAt = uc.now()
	return uc.repo.Subscription().Update(ctx, sub)
}

// ResumeSubscription restores the delivery state recorded at mute time
func (uc *UseCases) ResumeSubscription(ctx context.Context, id types.SubscriptionID) error {
	sub, err := uc.repo.Subscription().Get(ctx, id)
	if err != nil {
		return err
	}

	sub.Resume()
	sub.UpdatedAt = uc.now()
	return uc.repo.Subscription().Update(ctx, sub)
}

// SetDelivery reconfigures a subscription's delivery state and, for
// scheduled states, its fire time. The fire time arrives in the user's
// local clock and is stored in UTC.
func (uc *UseCases) SetDelivery(ctx context.Context, id types.SubscriptionID, state types.DeliveryState, localFireHour, tzOffsetMinutes int, localWeekday time.Weekday) error {
	if !state.IsValid() {
		return goerr.New("invalid delivery state", goerr.V("state", state))
	}

	sub, err := uc.repo.Subscription().Get(ctx, id)
	if err != nil {
		return err
	}

	if state == types.DeliveryMuted {
		sub.Mute()
	} else {
		sub.State = state
		sub.PreviousState = ""
		if state.IsScheduled() {
			hourUTC, weekdayUTC := ConvertLocalFireTime(localFireHour, tzOffsetMinutes, localWeekday)
			sub.FireHourUTC = hourUTC
			sub.FireWeekday = weekdayUTC
		}
	}

	sub.UpdatedAt = uc.now()
	return uc.repo.Subscription().Update(ctx, sub)
}

// ListSubscriptions returns all subscriptions of a conversation
func (uc *UseCases) ListSubscriptions(ctx context.Context, conversationID string) ([]*model.Subscription, error) {
	return uc.repo.Subscription().ListByConversation(ctx, conversationID)
}

// ConvertLocalFireTime translates a user-local digest fire time into UTC.
// tzOffsetMinutes is the offset east of UTC, so UTC time is local time
// minus the offset. When the subtraction crosses midnight the weekday
// shifts with it.
func ConvertLocalFireTime(localHour, tzOffsetMinutes int, weekday time.Weekday) (int, time.Weekday) {
	total := localHour*60 - tzOffsetMinutes

	dayShift := 0
	for total < 0 {
		total += 24 * 60
		dayShift--
	}
	for total >= 24*60 {
		total -= 24 * 60
		dayShift++
	}

	weekdayUTC := time.Weekday(((int(weekday)+dayShift)%7 + 7) % 7)
	return total / 60, weekdayUTC
}
