package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/service/googledrive"
	"github.com/urfave/cli/v3"
)

// Google holds CLI flags for the Google OAuth application
type Google struct {
	clientID     string
	clientSecret string
}

func (x *Google) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "google-client-id",
			Usage:       "Google OAuth client ID",
			Category:    "Google",
			Sources:     cli.EnvVars("GYGES_GOOGLE_CLIENT_ID"),
			Destination: &x.clientID,
		},
		&cli.StringFlag{
			Name:        "google-client-secret",
			Usage:       "Google OAuth client secret",
			Category:    "Google",
			Sources:     cli.EnvVars("GYGES_GOOGLE_CLIENT_SECRET"),
			Destination: &x.clientSecret,
		},
	}
}

func (x Google) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("client-id.len", len(x.clientID)),
		slog.Int("client-secret.len", len(x.clientSecret)),
	)
}

// ClientID returns the OAuth client ID
func (x *Google) ClientID() string {
	return x.clientID
}

// Configure creates the OAuth client. baseURL is the public address of
// this service; the OAuth callback lives under it.
func (x *Google) Configure(baseURL string) (*googledrive.OAuth, error) {
	if x.clientID == "" || x.clientSecret == "" {
		return nil, goerr.New("google-client-id and google-client-secret are required")
	}
	if baseURL == "" {
		return nil, goerr.New("base-url is required for the OAuth callback")
	}
	return googledrive.NewOAuth(x.clientID, x.clientSecret, baseURL+"/api/auth/callback"), nil
}
