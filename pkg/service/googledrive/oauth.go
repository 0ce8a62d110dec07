package googledrive

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/utils/safe"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const revokeEndpoint = "https://oauth2.googleapis.com/revoke"

var oauthScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"openid",
}

// OAuth implements interfaces.OAuthClient for Google's OAuth2 endpoint.
type OAuth struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

var _ interfaces.OAuthClient = &OAuth{}

func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       oauthScopes,
			Endpoint:     google.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (x *OAuth) AuthCodeURL(state string) string {
	// prompt=consent forces a refresh token even on re-authorization.
	return x.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (x *OAuth) Exchange(ctx context.Context, code string) (*model.OAuthToken, error) {
	token, err := x.conf.Exchange(ctx, code)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange authorization code")
	}

	idToken, _ := token.Extra("id_token").(string)

	return &model.OAuthToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

func (x *OAuth) Refresh(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	src := x.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to refresh access token")
	}

	refreshed := &model.OAuthToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	// Google omits the refresh token on refresh responses. Keep the
	// one we already hold.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = refreshToken
	}
	return refreshed, nil
}

func (x *OAuth) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return goerr.Wrap(err, "failed to build revoke request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to call revoke endpoint")
	}
	defer safe.Close(ctx, resp.Body)

	// 400 means the token is already invalid, which is the state we
	// wanted anyway.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return goerr.New("revoke endpoint returned error", goerr.V("status", resp.StatusCode))
	}
	return nil
}
