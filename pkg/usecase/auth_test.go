package usecase_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

func authStateOf(t *testing.T, authURL string) string {
	t.Helper()

	u, err := url.Parse(authURL)
	gt.NoError(t, err).Required()
	state := u.Query().Get("state")
	gt.String(t, state).NotEqual("")
	return state
}

func TestAuthFlowLinksAccount(t *testing.T) {
	h := newHarness(t)

	authURL, err := h.uc.BeginAuth(context.Background(), "U001")
	gt.NoError(t, err).Required()
	gt.Bool(t, strings.Contains(authURL, "state=")).True()

	account, err := h.uc.HandleCallback(context.Background(), authStateOf(t, authURL), "code-1")
	gt.NoError(t, err).Required()

	gt.Value(t, account.ID).Equal(types.AccountID("acc-1"))
	gt.Value(t, account.SlackUserID).Equal("U001")
	gt.Value(t, account.HomeConversationID).Equal("D-U001")
	gt.Value(t, account.AccessToken).Equal("at-code-1")
	gt.Bool(t, account.ReceiveNewFileShare).True()

	// the account is resolvable by its new watch channel
	gt.String(t, string(account.ChannelID)).NotEqual("")
	byChannel, err := h.repo.Account().GetByChannelID(context.Background(), account.ChannelID)
	gt.NoError(t, err).Required()
	gt.Value(t, byChannel.ID).Equal(account.ID)

	// the cursor starts at the provider's current frontier
	gt.Value(t, account.Cursor).Equal("1000")
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	h := newHarness(t)

	_, err := h.uc.HandleCallback(context.Background(), "state-forged", "code-1")
	gt.Error(t, err)
}

func TestCallbackStateIsConsumeOnce(t *testing.T) {
	h := newHarness(t)

	authURL, err := h.uc.BeginAuth(context.Background(), "U001")
	gt.NoError(t, err).Required()
	state := authStateOf(t, authURL)

	_, err = h.uc.HandleCallback(context.Background(), state, "code-1")
	gt.NoError(t, err).Required()

	_, err = h.uc.HandleCallback(context.Background(), state, "code-1")
	gt.Error(t, err)
}

func TestRelinkStopsOldChannel(t *testing.T) {
	h := newHarness(t)
	old := h.seedAccount(t)

	authURL, err := h.uc.BeginAuth(context.Background(), "U001")
	gt.NoError(t, err).Required()

	account, err := h.uc.HandleCallback(context.Background(), authStateOf(t, authURL), "code-2")
	gt.NoError(t, err).Required()

	gt.Array(t, h.drive.stoppedChannels).Length(1)
	gt.Value(t, h.drive.stoppedChannels[0]).Equal(old.ChannelID)
	gt.Value(t, account.ChannelID).NotEqual(old.ChannelID)

	// the stale channel no longer resolves
	_, err = h.repo.Account().GetByChannelID(context.Background(), old.ChannelID)
	gt.Error(t, err).Is(types.ErrChannelNotFound)
}

func TestEnsureValidTokenRefreshes(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t)
	account.TokenExpiresAt = testNow.Add(-time.Minute)
	gt.NoError(t, h.repo.Account().Put(context.Background(), account)).Required()

	gt.NoError(t, h.uc.EnsureValidToken(context.Background(), account)).Required()
	gt.Value(t, account.AccessToken).Equal("at-refreshed")
	gt.Number(t, h.oauth.refreshCalls).Equal(1)

	// a valid token is left alone
	gt.NoError(t, h.uc.EnsureValidToken(context.Background(), account)).Required()
	gt.Number(t, h.oauth.refreshCalls).Equal(1)
}

func TestRejectedRefreshClearsCredentials(t *testing.T) {
	h := newHarness(t)
	h.oauth.refreshErr = goerr.New("invalid_grant")
	account := h.seedAccount(t)
	account.TokenExpiresAt = testNow.Add(-time.Minute)
	gt.NoError(t, h.repo.Account().Put(context.Background(), account)).Required()

	err := h.uc.EnsureValidToken(context.Background(), account)
	gt.Error(t, err).Is(types.ErrUnauthorized)

	stored, err := h.repo.Account().Get(context.Background(), account.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.AccessToken).Equal("")
	gt.Value(t, stored.RefreshToken).Equal("")
}

func TestUnauthorizeCascades(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t)
	h.seedSubscription(t, types.DeliveryRealtime, "file-1")
	h.seedSubscription(t, types.DeliveryDaily, "file-2")

	removed, err := h.uc.Unauthorize(context.Background(), "U001")
	gt.NoError(t, err).Required()
	gt.Number(t, removed).Equal(2)

	_, err = h.repo.Account().Get(context.Background(), account.ID)
	gt.Error(t, err).Is(types.ErrAccountNotFound)

	gt.Array(t, h.oauth.revokedTokens).Length(1)
	gt.Value(t, h.oauth.revokedTokens[0]).Equal("rt-valid")
	gt.Array(t, h.drive.stoppedChannels).Length(1)
}

func TestUnauthorizeUnknownUser(t *testing.T) {
	h := newHarness(t)

	_, err := h.uc.Unauthorize(context.Background(), "U-unknown")
	gt.Error(t, err).Is(types.ErrAccountNotFound)
}
