package googledrive

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// changePageSize bounds one changes.list page; the feed is drained
	// page by page until the new frontier is reported.
	changePageSize = 100

	// watchChannelTTL is the lifetime requested for watch channels.
	// Drive caps web_hook channels at 24 hours; the renewal worker
	// re-creates them at half that.
	watchChannelTTL = 24 * time.Hour

	fileFields = "id,name,webViewLink,iconLink,owners,sharedWithMeTime,modifiedTime,ownedByMe,mimeType"
)

// Client implements interfaces.DriveClient over the Drive v3 API. Each
// call builds a per-token service; the Drive SDK carries no per-user
// state worth pooling.
type Client struct{}

var _ interfaces.DriveClient = &Client{}

func New() *Client {
	return &Client{}
}

func (c *Client) service(ctx context.Context, accessToken string) (*drive.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	srv, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create drive service")
	}
	return srv, nil
}

func (c *Client) GetCurrentUser(ctx context.Context, accessToken string) (*model.DriveUser, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	about, err := srv.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get drive user")
	}

	return &model.DriveUser{
		ID:        types.AccountID(about.User.PermissionId),
		Email:     about.User.EmailAddress,
		Name:      about.User.DisplayName,
		AvatarURL: about.User.PhotoLink,
	}, nil
}

func (c *Client) GetStartPageToken(ctx context.Context, accessToken string) (string, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	resp, err := srv.Changes.GetStartPageToken().Context(ctx).Do()
	if err != nil {
		return "", goerr.Wrap(err, "failed to get start page token")
	}
	return resp.StartPageToken, nil
}

func (c *Client) ListChanges(ctx context.Context, accessToken, cursor string) (*model.ChangeFeed, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	feed := &model.ChangeFeed{}
	pageToken := cursor
	for pageToken != "" {
		resp, err := srv.Changes.List(pageToken).
			PageSize(changePageSize).
			IncludeItemsFromAllDrives(true).
			SupportsAllDrives(true).
			Fields("changes(changeType,fileId,time),newStartPageToken,nextPageToken").
			Context(ctx).
			Do()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list changes", goerr.V("cursor", cursor))
		}

		for _, ch := range resp.Changes {
			changedAt, err := time.Parse(time.RFC3339, ch.Time)
			if err != nil {
				changedAt = time.Time{}
			}
			feed.Changes = append(feed.Changes, model.Change{
				Kind:   ch.ChangeType,
				FileID: types.FileID(ch.FileId),
				Time:   changedAt,
			})
		}

		if resp.NewStartPageToken != "" {
			feed.NewCursor = resp.NewStartPageToken
		}
		pageToken = resp.NextPageToken
	}

	return feed, nil
}

func (c *Client) GetFile(ctx context.Context, accessToken string, fileID types.FileID) (*model.FileMetadata, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	f, err := srv.Files.Get(string(fileID)).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, goerr.Wrap(types.ErrFileNotFound, "drive file not found", goerr.V("fileID", fileID))
		}
		return nil, goerr.Wrap(err, "failed to get drive file", goerr.V("fileID", fileID))
	}

	meta := &model.FileMetadata{
		ID:        types.FileID(f.Id),
		Name:      f.Name,
		URL:       f.WebViewLink,
		IconURL:   f.IconLink,
		MimeType:  f.MimeType,
		OwnedByMe: f.OwnedByMe,
	}
	if len(f.Owners) > 0 {
		meta.OwnerName = f.Owners[0].DisplayName
		meta.OwnerEmail = f.Owners[0].EmailAddress
		meta.OwnerAvatarURL = f.Owners[0].PhotoLink
	}
	if f.SharedWithMeTime != "" {
		if t, err := time.Parse(time.RFC3339, f.SharedWithMeTime); err == nil {
			meta.SharedWithMeAt = t
		}
	}
	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			meta.ModifiedAt = t
		}
	}
	return meta, nil
}

func (c *Client) GetLatestComment(ctx context.Context, accessToken string, fileID types.FileID) (*model.Comment, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Comments.List(string(fileID)).
		PageSize(1).
		Fields("comments(id,content,modifiedTime,author,replies,quotedFileContent)").
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, goerr.Wrap(types.ErrFileNotFound, "drive file not found", goerr.V("fileID", fileID))
		}
		return nil, goerr.Wrap(err, "failed to list comments", goerr.V("fileID", fileID))
	}

	if len(resp.Comments) == 0 {
		return nil, nil
	}

	c0 := resp.Comments[0]
	comment := &model.Comment{
		ID:         c0.Id,
		Content:    c0.Content,
		ReplyCount: len(c0.Replies),
	}
	if c0.Author != nil {
		comment.AuthorName = c0.Author.DisplayName
		comment.AuthorEmail = c0.Author.EmailAddress
		comment.AuthorAvatarURL = c0.Author.PhotoLink
	}
	if c0.QuotedFileContent != nil {
		comment.QuotedContent = c0.QuotedFileContent.Value
	}
	if c0.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, c0.ModifiedTime); err == nil {
			comment.ModifiedAt = t
		}
	}
	return comment, nil
}

func (c *Client) CreateWatchChannel(ctx context.Context, accessToken, cursor string, channelID types.ChannelID, callbackURL string) (*model.WatchChannel, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	expiration := time.Now().Add(watchChannelTTL)
	ch, err := srv.Changes.Watch(cursor, &drive.Channel{
		Id:         string(channelID),
		Type:       "web_hook",
		Address:    callbackURL,
		Expiration: expiration.UnixMilli(),
	}).
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create watch channel", goerr.V("channelID", channelID))
	}

	return &model.WatchChannel{
		ID:         types.ChannelID(ch.Id),
		ResourceID: ch.ResourceId,
		ExpiresAt:  time.UnixMilli(ch.Expiration),
	}, nil
}

func (c *Client) StopWatchChannel(ctx context.Context, accessToken string, channelID types.ChannelID, resourceID string) error {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	err = srv.Channels.Stop(&drive.Channel{
		Id:         string(channelID),
		ResourceId: resourceID,
	}).Context(ctx).Do()
	if err != nil {
		// An expired or already-stopped channel counts as stopped.
		if isNotFound(err) {
			return nil
		}
		return goerr.Wrap(err, "failed to stop watch channel", goerr.V("channelID", channelID))
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return false
}

// FileTypeFromMime maps a Drive MIME type to the coarse file type shown
// in notifications.
func FileTypeFromMime(mimeType string) string {
	switch mimeType {
	case "application/vnd.google-apps.document":
		return "document"
	case "application/vnd.google-apps.folder":
		return "folder"
	case "application/vnd.google-apps.form":
		return "form"
	case "application/vnd.google-apps.presentation":
		return "slide"
	case "application/vnd.google-apps.spreadsheet":
		return "spreadsheet"
	default:
		return "file"
	}
}
