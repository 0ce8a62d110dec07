package interfaces

import (
	"context"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// DriveClient is the boundary to the Google Drive API. All calls are
// authenticated with the account's current access token; callers must run
// the token through the token lifecycle manager first.
type DriveClient interface {
	// GetCurrentUser returns the identity behind the access token
	GetCurrentUser(ctx context.Context, accessToken string) (*model.DriveUser, error)

	// GetStartPageToken returns the current frontier of the change feed
	GetStartPageToken(ctx context.Context, accessToken string) (string, error)

	// ListChanges pulls the change feed from the given cursor
	ListChanges(ctx context.Context, accessToken, cursor string) (*model.ChangeFeed, error)

	// GetFile fetches current file metadata.
	// Returns types.ErrFileNotFound when gone or inaccessible.
	GetFile(ctx context.Context, accessToken string, fileID types.FileID) (*model.FileMetadata, error)

	// GetLatestComment fetches the most recent comment on a file.
	// Returns nil, nil when the file has no comments.
	GetLatestComment(ctx context.Context, accessToken string, fileID types.FileID) (*model.Comment, error)

	// CreateWatchChannel registers a web_hook watch on the change feed
	CreateWatchChannel(ctx context.Context, accessToken, cursor string, channelID types.ChannelID, callbackURL string) (*model.WatchChannel, error)

	// StopWatchChannel stops a watch channel. Implementations must treat
	// "channel already expired or unknown" as success.
	StopWatchChannel(ctx context.Context, accessToken string, channelID types.ChannelID, resourceID string) error
}

// OAuthClient is the boundary to the provider's OAuth token endpoints
type OAuthClient interface {
	// AuthCodeURL builds the user-facing consent URL
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token pair
	Exchange(ctx context.Context, code string) (*model.OAuthToken, error)

	// Refresh trades a refresh token for a fresh token pair
	Refresh(ctx context.Context, refreshToken string) (*model.OAuthToken, error)

	// Revoke invalidates the refresh token at the provider
	Revoke(ctx context.Context, refreshToken string) error
}
