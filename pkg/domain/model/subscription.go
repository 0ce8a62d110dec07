package model

import (
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// Subscription binds one conversation to comment events of one file owned
// by one account. At most one subscription may exist per
// (conversation, bot, file) triple.
type Subscription struct {
	ID             types.SubscriptionID
	ConversationID string
	BotID          string
	AccountID      types.AccountID
	FileID         types.FileID

	State types.DeliveryState

	// PreviousState remembers the state before a mute so Resume restores
	// exactly it instead of a default.
	PreviousState types.DeliveryState

	// Digest fire time in UTC. FireWeekday is only meaningful for weekly.
	FireHourUTC int
	FireWeekday time.Weekday

	// LastCommentID is the idempotence marker: the ID of the most recent
	// comment already handled for this subscription. It is the
	// authoritative dedup check, stronger than the freshness window.
	LastCommentID string

	// Pending buffers comment notifications for daily/weekly delivery
	// until the digest scheduler flushes them.
	Pending []CommentNotice

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mute pauses delivery, remembering the current state for Resume.
// Muting an already muted subscription is a no-op.
func (s *Subscription) Mute() {
	if s.State == types.DeliveryMuted {
		return
	}
	s.PreviousState = s.State
	s.State = types.DeliveryMuted
}

// Resume restores the state recorded by Mute. Resuming a subscription
// that is not muted is a no-op.
func (s *Subscription) Resume() {
	if s.State != types.DeliveryMuted {
		return
	}
	s.State = s.PreviousState.Normalize()
	s.PreviousState = ""
}

// MarkComment advances the idempotence marker. Returns false when the
// comment was already recorded, i.e. a replayed feed entry.
func (s *Subscription) MarkComment(commentID string) bool {
	if commentID == "" || s.LastCommentID == commentID {
		return false
	}
	s.LastCommentID = commentID
	return true
}

// Enqueue appends a notification to the digest buffer.
func (s *Subscription) Enqueue(n CommentNotice) {
	s.Pending = append(s.Pending, n)
}

// ClearPending empties the digest buffer. Called only after a confirmed
// digest send.
func (s *Subscription) ClearPending() {
	s.Pending = nil
}
