package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/service/googledrive"
	"github.com/secmon-lab/gyges/pkg/utils/errutil"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// ProcessChannelPing handles one webhook ping from the change feed: it
// resolves the channel to its account, drains the feed from the stored
// cursor, classifies each change, routes the resulting notifications, and
// finally commits the new cursor.
//
// The cursor is committed only after the whole batch is processed. A
// failure mid-batch leaves the cursor at the old frontier so the next
// ping replays the batch; the per-subscription idempotence markers make
// the replay safe.
func (uc *UseCases) ProcessChannelPing(ctx context.Context, channelID types.ChannelID) error {
	account, err := uc.repo.Account().GetByChannelID(ctx, channelID)
	if err != nil {
		return err
	}

	if err := uc.EnsureValidToken(ctx, account); err != nil {
		return err
	}

	feed, err := uc.drive.ListChanges(ctx, account.AccessToken, account.Cursor)
	if err != nil {
		return goerr.Wrap(err, "failed to list changes", goerr.V("accountID", account.ID))
	}

	// A file can appear multiple times in one batch; classify it once. A
	// failing change is logged and skipped so the rest of the batch still
	// delivers; the cursor is then held back and the next ping replays
	// the batch, with the idempotence markers absorbing the duplicates.
	seen := map[types.FileID]bool{}
	var failed bool
	for _, change := range feed.Changes {
		if change.Kind != "file" || seen[change.FileID] {
			continue
		}
		seen[change.FileID] = true

		if err := uc.classifyFileChange(ctx, account, change); err != nil {
			errutil.Handle(ctx, err, "failed to classify file change")
			failed = true
		}
	}

	if failed {
		return goerr.New("change batch incomplete, cursor not advanced",
			goerr.V("accountID", account.ID),
			goerr.V("cursor", account.Cursor))
	}

	if account.AdvanceCursor(feed.NewCursor) {
		account.UpdatedAt = uc.now()
		if err := uc.repo.Account().Put(ctx, account); err != nil {
			return goerr.Wrap(err, "failed to commit cursor", goerr.V("accountID", account.ID))
		}
	}

	return nil
}

// classifyFileChange inspects one changed file and emits the notification
// that applies. A change classifies as either a new share or a new
// comment, never both: a file that was just shared goes to the account's
// home conversation and its comments are not judged until a later change.
func (uc *UseCases) classifyFileChange(ctx context.Context, account *model.Account, change model.Change) error {
	fileID := change.FileID
	meta, err := uc.drive.GetFile(ctx, account.AccessToken, fileID)
	if err != nil {
		// Deleted or inaccessible files are not actionable; drop the
		// change and move on.
		if errors.Is(err, types.ErrFileNotFound) {
			logging.From(ctx).Debug("skipping inaccessible file", "fileID", fileID)
			return nil
		}
		return err
	}

	if err := uc.repo.File().Put(ctx, &model.File{
		ID:         meta.ID,
		Name:       meta.Name,
		IconURL:    meta.IconURL,
		OwnerEmail: meta.OwnerEmail,
		URL:        meta.URL,
		UpdatedAt:  uc.now(),
	}); err != nil {
		logging.From(ctx).Warn("failed to cache file metadata", "error", err, "fileID", fileID)
	}

	if uc.routeNewShare(ctx, account, change.Time, meta) {
		return nil
	}

	subs, err := uc.repo.Subscription().ListByAccountAndFile(ctx, account.ID, fileID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	// The comment fetch is hoisted in front of the subscription loop;
	// every subscription on the file judges the same comment.
	comment, err := uc.drive.GetLatestComment(ctx, account.AccessToken, fileID)
	if err != nil {
		if errors.Is(err, types.ErrFileNotFound) {
			return nil
		}
		return err
	}
	if comment == nil {
		return nil
	}

	// One subscription failing to persist must not starve the others of
	// the same comment; the error still surfaces so the cursor is held.
	var lastErr error
	for _, sub := range subs {
		if err := uc.routeComment(ctx, sub, change.Time, meta, comment); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// routeNewShare emits a share notice when the file was just shared with
// the account. It reports whether the change classified as a new share,
// which the caller uses to keep share and comment classification mutually
// exclusive. Delivery is at-most-once: a send failure is logged, never
// replayed.
func (uc *UseCases) routeNewShare(ctx context.Context, account *model.Account, changeTime time.Time, meta *model.FileMetadata) bool {
	if meta.OwnedByMe || meta.SharedWithMeAt.IsZero() {
		return false
	}
	if !uc.withinWindow(changeTime, meta.SharedWithMeAt) {
		return false
	}
	if !account.ReceiveNewFileShare {
		// still a new-share change, the account just turned delivery off
		return true
	}

	notice := &model.ShareNotice{
		FileID:         meta.ID,
		FileName:       meta.Name,
		FileURL:        meta.URL,
		FileIconURL:    meta.IconURL,
		FileType:       googledrive.FileTypeFromMime(meta.MimeType),
		OwnerName:      meta.OwnerName,
		OwnerEmail:     meta.OwnerEmail,
		OwnerAvatarURL: meta.OwnerAvatarURL,
		SharedAt:       meta.SharedWithMeAt,
	}

	if err := uc.messenger.SendNewShare(ctx, account.HomeConversationID, notice); err != nil {
		logging.From(ctx).Warn("failed to send share notification",
			"error", err,
			"accountID", account.ID,
			"fileID", meta.ID)
	}
	return true
}

// routeComment judges one comment for one subscription and dispatches it
// according to the subscription's delivery state.
//
// The idempotence marker is advanced and persisted before the state is
// consulted. A muted subscription therefore still records the comment,
// so resuming does not replay notifications that arrived while muted.
func (uc *UseCases) routeComment(ctx context.Context, sub *model.Subscription, changeTime time.Time, meta *model.FileMetadata, comment *model.Comment) error {
	if comment.ReplyCount > 0 {
		return nil
	}
	if !uc.withinWindow(changeTime, comment.ModifiedAt) {
		return nil
	}
	if !sub.MarkComment(comment.ID) {
		return nil
	}

	notice := model.CommentNotice{
		SubscriptionID:  sub.ID,
		FileID:          meta.ID,
		FileName:        meta.Name,
		FileURL:         meta.URL,
		FileIconURL:     meta.IconURL,
		CommentID:       comment.ID,
		CommentContent:  comment.Content,
		QuotedContent:   comment.QuotedContent,
		AuthorName:      comment.AuthorName,
		AuthorEmail:     comment.AuthorEmail,
		AuthorAvatarURL: comment.AuthorAvatarURL,
		CommentedAt:     comment.ModifiedAt,
	}

	if sub.State.IsScheduled() {
		sub.Enqueue(notice)
	}

	sub.UpdatedAt = uc.now()
	if err := uc.repo.Subscription().Update(ctx, sub); err != nil {
		return goerr.Wrap(err, "failed to persist idempotence marker", goerr.V("subscriptionID", sub.ID))
	}

	if sub.State.Normalize() == types.DeliveryRealtime {
		if err := uc.messenger.SendNewComment(ctx, sub.ConversationID, &notice); err != nil {
			logging.From(ctx).Warn("failed to send comment notification",
				"error", err,
				"subscriptionID", sub.ID,
				"fileID", meta.ID)
		}
	}

	return nil
}

// withinWindow reports whether a resource timestamp is close enough to
// the change entry's own timestamp to count as a fresh event. Judging
// against the entry, not wall clock, keeps a delayed or replayed ping
// from dropping events that were fresh when the feed recorded them.
// Negative drift passes: the feed does not order the two timestamps.
// An entry without a timestamp falls back to wall clock.
func (uc *UseCases) withinWindow(changeTime, t time.Time) bool {
	if changeTime.IsZero() {
		changeTime = uc.now()
	}
	diff := changeTime.Sub(t)
	return -uc.freshnessWindow < diff && diff < uc.freshnessWindow
}
