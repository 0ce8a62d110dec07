package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

const googleJWKSURI = "https://www.googleapis.com/oauth2/v3/certs"

// BeginAuth starts the OAuth flow for a Slack user and returns the
// consent URL to send them to.
func (uc *UseCases) BeginAuth(ctx context.Context, slackUserID string) (string, error) {
	if slackUserID == "" {
		return "", goerr.New("slack user ID is required")
	}

	state := uuid.NewString()
	uc.states.put(state, slackUserID)

	return uc.oauth.AuthCodeURL(state), nil
}

// HandleCallback completes the OAuth flow: it validates the state,
// exchanges the code, verifies the ID token, and links (or re-links) the
// Drive account to the Slack user, registering a fresh watch channel.
func (uc *UseCases) HandleCallback(ctx context.Context, state, code string) (*model.Account, error) {
	slackUserID, ok := uc.states.consume(state)
	if !ok {
		return nil, goerr.New("unknown or expired OAuth state")
	}

	token, err := uc.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	if token.IDToken != "" {
		if err := uc.verifyIDToken(ctx, token.IDToken); err != nil {
			return nil, err
		}
	}

	user, err := uc.drive.GetCurrentUser(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	botID, err := uc.messenger.BotUserID(ctx)
	if err != nil {
		return nil, err
	}

	homeConv, err := uc.messenger.OpenDirectConversation(ctx, slackUserID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	account := &model.Account{
		ID:                  user.ID,
		Email:               user.Email,
		Name:                user.Name,
		SlackUserID:         slackUserID,
		BotID:               botID,
		HomeConversationID:  homeConv,
		AccessToken:         token.AccessToken,
		RefreshToken:        token.RefreshToken,
		TokenExpiresAt:      token.ExpiresAt,
		ReceiveNewFileShare: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// Re-linking replaces the previous watch channel and keeps the
	// original creation time and preferences.
	if prev, err := uc.repo.Account().Get(ctx, user.ID); err == nil {
		account.CreatedAt = prev.CreatedAt
		account.ReceiveNewFileShare = prev.ReceiveNewFileShare
		uc.stopChannel(ctx, prev)
	} else if !errors.Is(err, types.ErrAccountNotFound) {
		return nil, err
	}

	if err := uc.connectChannel(ctx, account); err != nil {
		return nil, err
	}

	if err := uc.repo.Account().Put(ctx, account); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("linked drive account",
		"accountID", account.ID,
		"slackUserID", slackUserID)

	return account, nil
}

// EnsureValidToken refreshes the account's access token when it has
// expired. A rejected refresh token surfaces as types.ErrUnauthorized and
// clears the stored credentials so the user gets prompted to re-link.
func (uc *UseCases) EnsureValidToken(ctx context.Context, account *model.Account) error {
	if !account.TokenExpired(uc.now()) {
		return nil
	}

	if account.RefreshToken == "" {
		return goerr.Wrap(types.ErrUnauthorized, "no refresh token stored", goerr.V("accountID", account.ID))
	}

	token, err := uc.oauth.Refresh(ctx, account.RefreshToken)
	if err != nil {
		account.ClearCredentials()
		account.UpdatedAt = uc.now()
		if putErr := uc.repo.Account().Put(ctx, account); putErr != nil {
			logging.From(ctx).Error("failed to clear credentials", "error", putErr, "accountID", account.ID)
		}
		return goerr.Wrap(types.ErrUnauthorized, "token refresh rejected", goerr.V("accountID", account.ID))
	}

	account.AccessToken = token.AccessToken
	account.RefreshToken = token.RefreshToken
	account.TokenExpiresAt = token.ExpiresAt
	account.UpdatedAt = uc.now()

	if err := uc.repo.Account().Put(ctx, account); err != nil {
		return goerr.Wrap(err, "failed to store refreshed token", goerr.V("accountID", account.ID))
	}

	return nil
}

// Unauthorize unlinks the Slack user's Drive account: the watch channel
// is stopped, the refresh token revoked at the provider, and all
// subscriptions removed. Provider-side failures do not block the local
// cleanup. Returns the number of removed subscriptions.
func (uc *UseCases) Unauthorize(ctx context.Context, slackUserID string) (int, error) {
	account, err := uc.repo.Account().GetBySlackUserID(ctx, slackUserID)
	if err != nil {
		return 0, err
	}

	uc.stopChannel(ctx, account)

	if account.RefreshToken != "" {
		if err := uc.oauth.Revoke(ctx, account.RefreshToken); err != nil {
			logging.From(ctx).Warn("failed to revoke refresh token", "error", err, "accountID", account.ID)
		}
	}

	removed, err := uc.repo.Subscription().DeleteByAccount(ctx, account.ID)
	if err != nil {
		return 0, err
	}

	if err := uc.repo.Account().Delete(ctx, account.ID); err != nil {
		return removed, err
	}

	logging.From(ctx).Info("unlinked drive account",
		"accountID", account.ID,
		"slackUserID", slackUserID,
		"removedSubscriptions", removed)

	return removed, nil
}

func (uc *UseCases) verifyIDToken(ctx context.Context, idToken string) error {
	keySet, err := jwk.Fetch(ctx, googleJWKSURI)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch Google's public keys")
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(10),
	}
	if uc.oauthClientID != "" {
		opts = append(opts, jwt.WithAudience(uc.oauthClientID))
	}

	if _, err := jwt.Parse([]byte(idToken), opts...); err != nil {
		return goerr.Wrap(err, "failed to verify ID token")
	}
	return nil
}
