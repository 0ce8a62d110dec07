package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

func TestRenewWatchChannelPreservesCursor(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t)
	oldChannel := account.ChannelID

	gt.NoError(t, h.uc.RenewWatchChannel(context.Background(), account)).Required()

	gt.Value(t, account.ChannelID).NotEqual(oldChannel)
	gt.Value(t, account.Cursor).Equal("1000")

	gt.Array(t, h.drive.stoppedChannels).Length(1)
	gt.Value(t, h.drive.stoppedChannels[0]).Equal(oldChannel)

	stored, err := h.repo.Account().GetByChannelID(context.Background(), account.ChannelID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.Cursor).Equal("1000")
}

func TestRenewAllSkipsUnlinkedAccounts(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t)

	// an account whose credentials were cleared must not be touched
	broken := &model.Account{
		ID:          "acc-broken",
		SlackUserID: "U002",
		ChannelID:   types.ChannelID("ch-broken"),
	}
	gt.NoError(t, h.repo.Account().Put(context.Background(), broken)).Required()

	gt.NoError(t, h.uc.RenewAllWatchChannels(context.Background())).Required()

	gt.Array(t, h.drive.createdChannels).Length(1)

	stored, err := h.repo.Account().Get(context.Background(), "acc-broken")
	gt.NoError(t, err).Required()
	gt.Value(t, stored.ChannelID).Equal(types.ChannelID("ch-broken"))
}
