package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// driveLinkPtn extracts the file ID from a Google Drive URL. Covers the
// /d/<id>, open?id=<id> and /folders/<id> forms.
var driveLinkPtn = regexp.MustCompile(`(?:/d/|[?&]id=|/folders/)([A-Za-z0-9_-]{10,})`)

const helpText = "Commands:\n" +
	"- `auth`: link your Google Drive account\n" +
	"- `unauth`: unlink your account and remove all subscriptions\n" +
	"- `subscribe <drive link>`: notify this conversation about new comments\n" +
	"- `unsubscribe <drive link>`: stop notifications for a file\n" +
	"- `list`: show this conversation's subscriptions\n" +
	"- `mute <drive link>` / `resume <drive link>`: pause or resume a file\n" +
	"- `deliver <realtime|daily|weekly> <drive link> [hour] [tz offset minutes]`: set delivery mode\n" +
	"- `sharing <on|off>`: toggle new-file-share notifications\n" +
	"- `help`: show this message"

// HandleBotCommand parses one bot mention or DM text and executes it.
// Replies always go back to the conversation the command arrived in.
func (uc *UseCases) HandleBotCommand(ctx context.Context, conversationID, slackUserID, text string) error {
	fields := strings.Fields(text)
	cmd := ""
	if len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}

	var reply string
	var err error

	switch cmd {
	case "auth", "login":
		reply, err = uc.cmdAuth(ctx, slackUserID)
	case "unauth", "logout":
		reply, err = uc.cmdUnauth(ctx, slackUserID)
	case "subscribe", "sub":
		reply, err = uc.cmdSubscribe(ctx, conversationID, slackUserID, fields[1:])
	case "unsubscribe", "unsub":
		reply, err = uc.cmdUnsubscribe(ctx, conversationID, fields[1:])
	case "list":
		reply, err = uc.cmdList(ctx, conversationID)
	case "mute":
		reply, err = uc.cmdSetMuted(ctx, conversationID, fields[1:], true)
	case "resume", "unmute":
		reply, err = uc.cmdSetMuted(ctx, conversationID, fields[1:], false)
	case "deliver":
		reply, err = uc.cmdDeliver(ctx, conversationID, fields[1:])
	case "sharing":
		reply, err = uc.cmdSharing(ctx, slackUserID, fields[1:])
	case "help", "":
		reply = helpText
	default:
		// A bare Drive link in a message is an implicit subscribe.
		if fileID, ok := extractFileID(text); ok {
			reply, err = uc.subscribeByID(ctx, conversationID, slackUserID, fileID)
		} else {
			reply = "Sorry, I don't know that command.\n\n" + helpText
		}
	}

	if err != nil {
		if errors.Is(err, types.ErrAccountNotFound) || errors.Is(err, types.ErrUnauthorized) {
			reply = "Your Google Drive account is not linked. Send me `auth` to get started."
		} else {
			logging.From(ctx).Error("bot command failed", "error", err, "command", cmd)
			reply = "Something went wrong, please try again."
		}
	}

	if reply == "" {
		return nil
	}
	return uc.messenger.SendMessage(ctx, conversationID, reply)
}

func (uc *UseCases) cmdAuth(ctx context.Context, slackUserID string) (string, error) {
	if _, err := uc.repo.Account().GetBySlackUserID(ctx, slackUserID); err == nil {
		return "Your Google Drive account is already linked. Send `unauth` first to re-link.", nil
	} else if !errors.Is(err, types.ErrAccountNotFound) {
		return "", err
	}

	url, err := uc.BeginAuth(ctx, slackUserID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Click to authorize Google Drive access: %s", url), nil
}

func (uc *UseCases) cmdUnauth(ctx context.Context, slackUserID string) (string, error) {
	removed, err := uc.Unauthorize(ctx, slackUserID)
	if err != nil {
		return "", err
	}
	if removed > 0 {
		return fmt.Sprintf("Unlinked your Google Drive account and removed %d subscription(s).", removed), nil
	}
	return "Unlinked your Google Drive account.", nil
}

func (uc *UseCases) cmdSubscribe(ctx context.Context, conversationID, slackUserID string, args []string) (string, error) {
	fileID, ok := extractFileIDFromArgs(args)
	if !ok {
		return "Give me a Google Drive link to subscribe to, e.g. `subscribe https://docs.google.com/document/d/...`", nil
	}
	return uc.subscribeByID(ctx, conversationID, slackUserID, fileID)
}

func (uc *UseCases) subscribeByID(ctx context.Context, conversationID, slackUserID string, fileID types.FileID) (string, error) {
	status, sub, err := uc.Subscribe(ctx, conversationID, slackUserID, fileID)
	if err != nil {
		return "", err
	}

	switch status {
	case SubscribeOK:
		return fmt.Sprintf("Subscribed. I'll post new comments on %s here.", uc.fileLabel(ctx, sub.FileID)), nil
	case SubscribeResumed:
		return fmt.Sprintf("That subscription was muted; I've resumed it for %s.", uc.fileLabel(ctx, sub.FileID)), nil
	case SubscribeDuplicated:
		return fmt.Sprintf("This conversation is already subscribed to %s.", uc.fileLabel(ctx, sub.FileID)), nil
	case SubscribeNotFound:
		return "I can't access that file. Check the link and your Drive permissions.", nil
	default:
		return "", goerr.New("unexpected subscribe status", goerr.V("status", status))
	}
}

func (uc *UseCases) cmdUnsubscribe(ctx context.Context, conversationID string, args []string) (string, error) {
	fileID, ok := extractFileIDFromArgs(args)
	if !ok {
		return "Give me the Google Drive link to unsubscribe from.", nil
	}

	if err := uc.Unsubscribe(ctx, conversationID, fileID); err != nil {
		if errors.Is(err, types.ErrSubscriptionNotFound) {
			return "This conversation is not subscribed to that file.", nil
		}
		return "", err
	}
	return "Unsubscribed.", nil
}

func (uc *UseCases) cmdList(ctx context.Context, conversationID string) (string, error) {
	subs, err := uc.ListSubscriptions(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "No subscriptions in this conversation yet. Send `subscribe <drive link>` to add one.", nil
	}

	var b strings.Builder
	b.WriteString("Subscriptions in this conversation:\n")
	for _, sub := range subs {
		fmt.Fprintf(&b, "- %s (%s)\n", uc.fileLabel(ctx, sub.FileID), sub.State.Normalize())
	}
	return b.String(), nil
}

func (uc *UseCases) cmdSetMuted(ctx context.Context, conversationID string, args []string, mute bool) (string, error) {
	sub, msg, err := uc.resolveSubArg(ctx, conversationID, args)
	if sub == nil {
		return msg, err
	}

	if mute {
		err = uc.MuteSubscription(ctx, sub.ID)
	} else {
		err = uc.ResumeSubscription(ctx, sub.ID)
	}
	if err != nil {
		return "", err
	}

	if mute {
		return fmt.Sprintf("Muted %s. Send `resume` with the same link to pick it back up.", uc.fileLabel(ctx, sub.FileID)), nil
	}
	return fmt.Sprintf("Resumed %s.", uc.fileLabel(ctx, sub.FileID)), nil
}

func (uc *UseCases) cmdDeliver(ctx context.Context, conversationID string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: `deliver <realtime|daily|weekly> <drive link> [hour] [tz offset minutes]`", nil
	}

	state, err := types.ParseDeliveryState(strings.ToLower(args[0]))
	if err != nil || state == types.DeliveryMuted {
		return "Pick one of `realtime`, `daily` or `weekly` (use `mute` to pause).", nil
	}

	sub, msg, err := uc.resolveSubArg(ctx, conversationID, args[1:])
	if sub == nil {
		return msg, err
	}

	localHour := uc.digestHourUTC
	tzOffset := 0
	if len(args) >= 3 {
		if h, err := strconv.Atoi(args[2]); err == nil && 0 <= h && h < 24 {
			localHour = h
		} else {
			return "The fire hour must be a number between 0 and 23.", nil
		}
	}
	if len(args) >= 4 {
		if off, err := strconv.Atoi(args[3]); err == nil {
			tzOffset = off
		}
	}

	if err := uc.SetDelivery(ctx, sub.ID, state, localHour, tzOffset, time.Monday); err != nil {
		return "", err
	}

	switch state {
	case types.DeliveryRealtime:
		return fmt.Sprintf("Comments on %s will be posted immediately.", uc.fileLabel(ctx, sub.FileID)), nil
	case types.DeliveryDaily:
		return fmt.Sprintf("Comments on %s will be bundled into a daily digest.", uc.fileLabel(ctx, sub.FileID)), nil
	default:
		return fmt.Sprintf("Comments on %s will be bundled into a weekly digest.", uc.fileLabel(ctx, sub.FileID)), nil
	}
}

func (uc *UseCases) cmdSharing(ctx context.Context, slackUserID string, args []string) (string, error) {
	if len(args) < 1 || (args[0] != "on" && args[0] != "off") {
		return "Usage: `sharing <on|off>`", nil
	}

	account, err := uc.repo.Account().GetBySlackUserID(ctx, slackUserID)
	if err != nil {
		return "", err
	}

	account.ReceiveNewFileShare = args[0] == "on"
	account.UpdatedAt = uc.now()
	if err := uc.repo.Account().Put(ctx, account); err != nil {
		return "", err
	}

	if account.ReceiveNewFileShare {
		return "I'll notify you when a file is newly shared with you.", nil
	}
	return "New-file-share notifications are off.", nil
}

func (uc *UseCases) resolveSubArg(ctx context.Context, conversationID string, args []string) (*model.Subscription, string, error) {
	fileID, ok := extractFileIDFromArgs(args)
	if !ok {
		return nil, "Give me the Google Drive link of the file.", nil
	}

	botID, err := uc.messenger.BotUserID(ctx)
	if err != nil {
		return nil, "", err
	}

	sub, err := uc.repo.Subscription().GetByConversationAndFile(ctx, conversationID, botID, fileID)
	if err != nil {
		if errors.Is(err, types.ErrSubscriptionNotFound) {
			return nil, "This conversation is not subscribed to that file.", nil
		}
		return nil, "", err
	}
	return sub, "", nil
}

// fileLabel renders a file reference from the cache; the raw ID is the
// fallback when the cache has no row yet.
func (uc *UseCases) fileLabel(ctx context.Context, fileID types.FileID) string {
	file, err := uc.repo.File().Get(ctx, fileID)
	if err != nil {
		return string(fileID)
	}
	return fmt.Sprintf("<%s|%s>", file.URL, file.Name)
}

// extractFileID pulls a Drive file ID out of free text. Slack wraps URLs
// in angle brackets, which the pattern tolerates.
func extractFileID(text string) (types.FileID, bool) {
	m := driveLinkPtn.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return types.FileID(m[1]), true
}

func extractFileIDFromArgs(args []string) (types.FileID, bool) {
	return extractFileID(strings.Join(args, " "))
}
