package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

func lastReply(t *testing.T, m *fakeMessenger) sentMessage {
	t.Helper()
	gt.Number(t, len(m.messages)).NotEqual(0)
	return m.messages[len(m.messages)-1]
}

func TestBotHelpCommand(t *testing.T) {
	h := newHarness(t)

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "help")).Required()

	reply := lastReply(t, h.messenger)
	gt.Value(t, reply.conversationID).Equal("C001")
	gt.Bool(t, strings.Contains(reply.text, "subscribe")).True()
}

func TestBotUnknownCommandShowsHelp(t *testing.T) {
	h := newHarness(t)

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "frobnicate")).Required()
	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "Commands:")).True()
}

func TestBotAuthCommand(t *testing.T) {
	h := newHarness(t)

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "auth")).Required()
	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "https://accounts.google.com")).True()

	// already linked
	h.seedAccount(t)
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "auth")).Required()
	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "already linked")).True()
}

func TestBotSubscribeWithDriveLink(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedFile("1AbCdEfGhIjKlMnOp")

	text := "subscribe <https://docs.google.com/document/d/1AbCdEfGhIjKlMnOp/edit>"
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", text)).Required()

	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "Subscribed")).True()

	sub, err := h.repo.Subscription().GetByConversationAndFile(context.Background(), "C001", "B001", "1AbCdEfGhIjKlMnOp")
	gt.NoError(t, err).Required()
	gt.Value(t, sub.State).Equal(types.DeliveryRealtime)
}

func TestBotBareDriveLinkSubscribes(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedFile("1AbCdEfGhIjKlMnOp")

	text := "have a look at https://drive.google.com/open?id=1AbCdEfGhIjKlMnOp please"
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", text)).Required()

	_, err := h.repo.Subscription().GetByConversationAndFile(context.Background(), "C001", "B001", "1AbCdEfGhIjKlMnOp")
	gt.NoError(t, err)
}

func TestBotSubscribeWithoutAccountPromptsAuth(t *testing.T) {
	h := newHarness(t)

	text := "subscribe https://docs.google.com/document/d/1AbCdEfGhIjKlMnOp/edit"
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", text)).Required()

	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "not linked")).True()
}

func TestBotSubscribeInaccessibleFile(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)

	text := "subscribe https://docs.google.com/document/d/1NoSuchFile12345/edit"
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", text)).Required()

	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "can't access")).True()
}

func TestBotMuteAndResume(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedFile("1AbCdEfGhIjKlMnOp")

	link := "https://docs.google.com/document/d/1AbCdEfGhIjKlMnOp/edit"
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "subscribe "+link)).Required()
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "mute "+link)).Required()

	sub, err := h.repo.Subscription().GetByConversationAndFile(context.Background(), "C001", "B001", "1AbCdEfGhIjKlMnOp")
	gt.NoError(t, err).Required()
	gt.Value(t, sub.State).Equal(types.DeliveryMuted)

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "resume "+link)).Required()
	sub, err = h.repo.Subscription().GetByConversationAndFile(context.Background(), "C001", "B001", "1AbCdEfGhIjKlMnOp")
	gt.NoError(t, err).Required()
	gt.Value(t, sub.State).Equal(types.DeliveryRealtime)
}

func TestBotDeliverCommand(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedFile("1AbCdEfGhIjKlMnOp")

	link := "https://docs.google.com/document/d/1AbCdEfGhIjKlMnOp/edit"
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "subscribe "+link)).Required()
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "deliver daily "+link+" 8 60")).Required()

	sub, err := h.repo.Subscription().GetByConversationAndFile(context.Background(), "C001", "B001", "1AbCdEfGhIjKlMnOp")
	gt.NoError(t, err).Required()
	gt.Value(t, sub.State).Equal(types.DeliveryDaily)
	gt.Number(t, sub.FireHourUTC).Equal(7)
}

func TestBotListCommand(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "list")).Required()
	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "No subscriptions")).True()

	h.seedFile("1AbCdEfGhIjKlMnOp")
	link := "https://docs.google.com/document/d/1AbCdEfGhIjKlMnOp/edit"
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "subscribe "+link)).Required()
	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "list")).Required()
	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "Doc 1AbCdEfGhIjKlMnOp")).True()
}

func TestBotSharingToggle(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "sharing off")).Required()

	account, err := h.repo.Account().GetBySlackUserID(context.Background(), "U001")
	gt.NoError(t, err).Required()
	gt.Bool(t, account.ReceiveNewFileShare).False()

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "sharing on")).Required()
	account, err = h.repo.Account().GetBySlackUserID(context.Background(), "U001")
	gt.NoError(t, err).Required()
	gt.Bool(t, account.ReceiveNewFileShare).True()
}

func TestBotUnauthCommand(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")

	gt.NoError(t, h.uc.HandleBotCommand(context.Background(), "C001", "U001", "unauth")).Required()
	gt.Bool(t, strings.Contains(lastReply(t, h.messenger).text, "Unlinked")).True()

	_, err := h.repo.Account().GetBySlackUserID(context.Background(), "U001")
	gt.Error(t, err).Is(types.ErrAccountNotFound)
}
