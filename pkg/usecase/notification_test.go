package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/repository/memory"
	"github.com/secmon-lab/gyges/pkg/usecase"
)

var testNow = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	repo      interfaces.Repository
	drive     *fakeDrive
	messenger *fakeMessenger
	oauth     *fakeOAuth
	uc        *usecase.UseCases
}

func newHarness(t *testing.T, opts ...usecase.Option) *harness {
	t.Helper()

	h := &harness{
		repo:      memory.New(),
		drive:     newFakeDrive(),
		messenger: newFakeMessenger(),
		oauth:     newFakeOAuth(),
	}

	opts = append([]usecase.Option{
		usecase.WithClock(func() time.Time { return testNow }),
	}, opts...)

	h.uc = usecase.New(h.repo, h.drive, h.oauth, h.messenger, "https://gyges.example.com/hooks/drive", opts...)
	return h
}

func (h *harness) seedAccount(t *testing.T) *model.Account {
	t.Helper()

	account := &model.Account{
		ID:                  "acc-1",
		Email:               "user@example.com",
		Name:                "Test User",
		SlackUserID:         "U001",
		BotID:               "B001",
		HomeConversationID:  "D-U001",
		ChannelID:           "ch-1",
		ResourceID:          "res-ch-1",
		Cursor:              "1000",
		AccessToken:         "at-valid",
		RefreshToken:        "rt-valid",
		TokenExpiresAt:      testNow.Add(time.Hour),
		ReceiveNewFileShare: true,
	}
	gt.NoError(t, h.repo.Account().Put(context.Background(), account)).Required()
	return account
}

func (h *harness) seedSubscription(t *testing.T, state types.DeliveryState, fileID types.FileID) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		ID:             types.SubscriptionID("sub-" + string(fileID)),
		ConversationID: "C001",
		BotID:          "B001",
		AccountID:      "acc-1",
		FileID:         fileID,
		State:          state,
		FireHourUTC:    9,
		FireWeekday:    time.Monday,
	}
	gt.NoError(t, h.repo.Subscription().Create(context.Background(), sub)).Required()
	return sub
}

func (h *harness) seedFileChange(fileID types.FileID, newCursor string) {
	h.drive.feed = &model.ChangeFeed{
		Changes:   []model.Change{{Kind: "file", FileID: fileID, Time: testNow}},
		NewCursor: newCursor,
	}
	h.drive.files[fileID] = &model.FileMetadata{
		ID:        fileID,
		Name:      "Doc " + string(fileID),
		URL:       "https://docs.google.com/document/d/" + string(fileID),
		MimeType:  "application/vnd.google-apps.document",
		OwnedByMe: true,
	}
}

func (h *harness) seedComment(fileID types.FileID, commentID string, age time.Duration, replies int) {
	h.drive.comments[fileID] = &model.Comment{
		ID:          commentID,
		Content:     "a comment",
		AuthorName:  "Alice",
		AuthorEmail: "alice@example.com",
		ModifiedAt:  testNow.Add(-age),
		ReplyCount:  replies,
	}
}

func TestProcessChannelPingUnknownChannel(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)

	err := h.uc.ProcessChannelPing(context.Background(), "ch-unknown")
	gt.Error(t, err).Is(types.ErrChannelNotFound)
}

func TestRealtimeCommentNotification(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	sub := h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")
	h.seedComment("file-1", "c1", 5*time.Second, 0)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	gt.Array(t, h.messenger.comments).Length(1)
	gt.Value(t, h.messenger.comments[0].CommentID).Equal("c1")
	gt.Value(t, h.messenger.comments[0].FileName).Equal("Doc file-1")

	stored, err := h.repo.Subscription().Get(context.Background(), sub.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.LastCommentID).Equal("c1")

	account, err := h.repo.Account().Get(context.Background(), "acc-1")
	gt.NoError(t, err).Required()
	gt.Value(t, account.Cursor).Equal("1001")
}

func TestReplayedPingIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")
	h.seedComment("file-1", "c1", 5*time.Second, 0)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	gt.Array(t, h.messenger.comments).Length(1)
}

func TestFreshnessWindowBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		age    time.Duration
		notify bool
	}{
		{"just inside the window", 29 * time.Second, true},
		{"exactly at the window", 30 * time.Second, false},
		{"well past the window", 5 * time.Minute, false},
		{"slightly ahead of wall clock", -10 * time.Second, true},
		{"ahead by exactly the window", -30 * time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedAccount(t)
			h.seedSubscription(t, types.DeliveryRealtime, "file-1")
			h.seedFileChange("file-1", "1001")
			h.seedComment("file-1", "c1", tc.age, 0)

			gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

			if tc.notify {
				gt.Array(t, h.messenger.comments).Length(1)
			} else {
				gt.Array(t, h.messenger.comments).Length(0)
			}
		})
	}
}

func TestCommentWithRepliesIsNotNew(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")
	h.seedComment("file-1", "c1", 5*time.Second, 2)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.comments).Length(0)
}

func TestMutedSubscriptionAdvancesMarker(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	sub := h.seedSubscription(t, types.DeliveryMuted, "file-1")
	h.seedFileChange("file-1", "1001")
	h.seedComment("file-1", "c1", 5*time.Second, 0)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	// nothing sent, nothing buffered, but the comment is recorded
	gt.Array(t, h.messenger.comments).Length(0)
	stored, err := h.repo.Subscription().Get(context.Background(), sub.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.LastCommentID).Equal("c1")
	gt.Array(t, stored.Pending).Length(0)

	// resuming and replaying the ping must not resurrect the comment
	gt.NoError(t, h.uc.ResumeSubscription(context.Background(), sub.ID)).Required()
	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.comments).Length(0)
}

func TestScheduledSubscriptionBuffersComment(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	sub := h.seedSubscription(t, types.DeliveryDaily, "file-1")
	h.seedFileChange("file-1", "1001")
	h.seedComment("file-1", "c1", 5*time.Second, 0)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	gt.Array(t, h.messenger.comments).Length(0)
	stored, err := h.repo.Subscription().Get(context.Background(), sub.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, stored.Pending).Length(1)
	gt.Value(t, stored.Pending[0].CommentID).Equal("c1")
	gt.Value(t, stored.LastCommentID).Equal("c1")
}

func TestSendFailureStillAdvancesMarker(t *testing.T) {
	h := newHarness(t)
	h.messenger.failComment = true
	h.seedAccount(t)
	sub := h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")
	h.seedComment("file-1", "c1", 5*time.Second, 0)

	// realtime delivery is at most once: the marker commits before the
	// send, so a failed send is not retried
	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	stored, err := h.repo.Subscription().Get(context.Background(), sub.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.LastCommentID).Equal("c1")

	h.messenger.failComment = false
	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.comments).Length(0)
}

func TestNewShareNotification(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedFileChange("file-1", "1001")
	h.drive.files["file-1"].OwnedByMe = false
	h.drive.files["file-1"].OwnerName = "Bob"
	h.drive.files["file-1"].SharedWithMeAt = testNow.Add(-5 * time.Second)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	gt.Array(t, h.messenger.shares).Length(1)
	gt.Value(t, h.messenger.shares[0].OwnerName).Equal("Bob")
	gt.Value(t, h.messenger.shares[0].FileType).Equal("document")
}

func TestStaleShareIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedFileChange("file-1", "1001")
	h.drive.files["file-1"].OwnedByMe = false
	h.drive.files["file-1"].SharedWithMeAt = testNow.Add(-10 * time.Minute)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.shares).Length(0)
}

func TestShareNotificationDisabled(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t)
	account.ReceiveNewFileShare = false
	gt.NoError(t, h.repo.Account().Put(context.Background(), account)).Required()

	h.seedFileChange("file-1", "1001")
	h.drive.files["file-1"].OwnedByMe = false
	h.drive.files["file-1"].SharedWithMeAt = testNow.Add(-5 * time.Second)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.shares).Length(0)
}

func TestInaccessibleFileIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")

	// the change references a file GetFile cannot resolve
	h.drive.feed = &model.ChangeFeed{
		Changes:   []model.Change{{Kind: "file", FileID: "file-1", Time: testNow}},
		NewCursor: "1001",
	}

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	// the batch still commits its cursor
	account, err := h.repo.Account().Get(context.Background(), "acc-1")
	gt.NoError(t, err).Required()
	gt.Value(t, account.Cursor).Equal("1001")
}

func TestCursorNeverRegresses(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedFileChange("file-1", "900")

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	account, err := h.repo.Account().Get(context.Background(), "acc-1")
	gt.NoError(t, err).Required()
	gt.Value(t, account.Cursor).Equal("1000")
}

func TestDelayedPingJudgesFreshnessAgainstChangeTime(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")

	// the ping arrives two minutes after the feed recorded the change;
	// the comment was fresh relative to the change entry itself
	changeTime := testNow.Add(-2 * time.Minute)
	h.drive.feed.Changes[0].Time = changeTime
	h.seedComment("file-1", "c1", 0, 0)
	h.drive.comments["file-1"].ModifiedAt = changeTime.Add(-5 * time.Second)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.comments).Length(1)
	gt.Value(t, h.messenger.comments[0].CommentID).Equal("c1")
}

func TestCommentStaleRelativeToChangeIsDropped(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")

	changeTime := testNow.Add(-2 * time.Minute)
	h.drive.feed.Changes[0].Time = changeTime
	h.seedComment("file-1", "c1", 0, 0)
	h.drive.comments["file-1"].ModifiedAt = changeTime.Add(-5 * time.Minute)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.comments).Length(0)
}

func TestFreshShareSuppressesCommentClassification(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	sub := h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")
	h.drive.files["file-1"].OwnedByMe = false
	h.drive.files["file-1"].SharedWithMeAt = testNow.Add(-5 * time.Second)
	h.seedComment("file-1", "c1", 5*time.Second, 0)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()

	// the change classifies as a share only; the comment is not judged
	// until a later change, so its marker stays untouched
	gt.Array(t, h.messenger.shares).Length(1)
	gt.Array(t, h.messenger.comments).Length(0)

	stored, err := h.repo.Subscription().Get(context.Background(), sub.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.LastCommentID).Equal("")
}

func TestFailingChangeDoesNotAbortBatch(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-2")

	h.seedFileChange("file-2", "1002")
	h.drive.feed.Changes = append(
		[]model.Change{{Kind: "file", FileID: "file-1", Time: testNow}},
		h.drive.feed.Changes...)
	h.drive.fileErrs["file-1"] = goerr.New("backend unavailable")
	h.seedComment("file-2", "c2", 5*time.Second, 0)

	// the broken change is skipped but the rest of the batch delivers,
	// and the cursor is held back for a replay
	gt.Error(t, h.uc.ProcessChannelPing(context.Background(), "ch-1"))
	gt.Array(t, h.messenger.comments).Length(1)
	gt.Value(t, h.messenger.comments[0].CommentID).Equal("c2")

	account, err := h.repo.Account().Get(context.Background(), "acc-1")
	gt.NoError(t, err).Required()
	gt.Value(t, account.Cursor).Equal("1000")

	// once the backend recovers the replay commits without re-sending
	delete(h.drive.fileErrs, "file-1")
	h.drive.files["file-1"] = &model.FileMetadata{ID: "file-1", Name: "Doc file-1", OwnedByMe: true}

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.comments).Length(1)

	account, err = h.repo.Account().Get(context.Background(), "acc-1")
	gt.NoError(t, err).Required()
	gt.Value(t, account.Cursor).Equal("1002")
}

func TestCustomFreshnessWindow(t *testing.T) {
	h := newHarness(t, usecase.WithFreshnessWindow(2*time.Minute))
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedFileChange("file-1", "1001")
	h.seedComment("file-1", "c1", 90*time.Second, 0)

	gt.NoError(t, h.uc.ProcessChannelPing(context.Background(), "ch-1")).Required()
	gt.Array(t, h.messenger.comments).Length(1)
}
