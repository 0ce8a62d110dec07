package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// fakeDrive is a canned-data DriveClient for usecase tests
type fakeDrive struct {
	mu sync.Mutex

	user           *model.DriveUser
	startPageToken string
	feed           *model.ChangeFeed
	files          map[types.FileID]*model.FileMetadata
	fileErrs       map[types.FileID]error
	comments       map[types.FileID]*model.Comment

	stoppedChannels []types.ChannelID
	createdChannels []types.ChannelID
}

var _ interfaces.DriveClient = &fakeDrive{}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		user:           &model.DriveUser{ID: "acc-1", Email: "user@example.com", Name: "Test User"},
		startPageToken: "1000",
		feed:           &model.ChangeFeed{},
		files:          map[types.FileID]*model.FileMetadata{},
		fileErrs:       map[types.FileID]error{},
		comments:       map[types.FileID]*model.Comment{},
	}
}

func (d *fakeDrive) GetCurrentUser(ctx context.Context, accessToken string) (*model.DriveUser, error) {
	return d.user, nil
}

func (d *fakeDrive) GetStartPageToken(ctx context.Context, accessToken string) (string, error) {
	return d.startPageToken, nil
}

func (d *fakeDrive) ListChanges(ctx context.Context, accessToken, cursor string) (*model.ChangeFeed, error) {
	return d.feed, nil
}

func (d *fakeDrive) GetFile(ctx context.Context, accessToken string, fileID types.FileID) (*model.FileMetadata, error) {
	if err := d.fileErrs[fileID]; err != nil {
		return nil, err
	}
	meta, ok := d.files[fileID]
	if !ok {
		return nil, goerr.Wrap(types.ErrFileNotFound, "no such file", goerr.V("fileID", fileID))
	}
	return meta, nil
}

func (d *fakeDrive) GetLatestComment(ctx context.Context, accessToken string, fileID types.FileID) (*model.Comment, error) {
	return d.comments[fileID], nil
}

func (d *fakeDrive) CreateWatchChannel(ctx context.Context, accessToken, cursor string, channelID types.ChannelID, callbackURL string) (*model.WatchChannel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createdChannels = append(d.createdChannels, channelID)
	return &model.WatchChannel{
		ID:         channelID,
		ResourceID: "res-" + string(channelID),
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	}, nil
}

func (d *fakeDrive) StopWatchChannel(ctx context.Context, accessToken string, channelID types.ChannelID, resourceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stoppedChannels = append(d.stoppedChannels, channelID)
	return nil
}

type sentMessage struct {
	conversationID string
	text           string
}

// fakeMessenger records everything sent through it
type fakeMessenger struct {
	mu sync.Mutex

	messages []sentMessage
	shares   []*model.ShareNotice
	comments []*model.CommentNotice
	digests  []*model.DigestBatch

	failDigest  bool
	failComment bool
}

var _ interfaces.Messenger = &fakeMessenger{}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{}
}

func (m *fakeMessenger) SendMessage(ctx context.Context, conversationID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{conversationID: conversationID, text: text})
	return nil
}

func (m *fakeMessenger) SendNewShare(ctx context.Context, conversationID string, n *model.ShareNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares = append(m.shares, n)
	return nil
}

func (m *fakeMessenger) SendNewComment(ctx context.Context, conversationID string, n *model.CommentNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failComment {
		return goerr.New("send failed")
	}
	m.comments = append(m.comments, n)
	return nil
}

func (m *fakeMessenger) SendDigest(ctx context.Context, conversationID string, d *model.DigestBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDigest {
		return goerr.New("send failed")
	}
	m.digests = append(m.digests, d)
	return nil
}

func (m *fakeMessenger) OpenDirectConversation(ctx context.Context, userID string) (string, error) {
	return "D-" + userID, nil
}

func (m *fakeMessenger) BotUserID(ctx context.Context) (string, error) {
	return "B001", nil
}

// fakeOAuth hands out fixed token pairs. IDToken stays empty so tests
// never reach out to a JWKS endpoint.
type fakeOAuth struct {
	mu sync.Mutex

	refreshErr    error
	revokedTokens []string
	refreshCalls  int
}

var _ interfaces.OAuthClient = &fakeOAuth{}

func newFakeOAuth() *fakeOAuth {
	return &fakeOAuth{}
}

func (o *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (o *fakeOAuth) Exchange(ctx context.Context, code string) (*model.OAuthToken, error) {
	return &model.OAuthToken{
		AccessToken:  "at-" + code,
		RefreshToken: "rt-" + code,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (o *fakeOAuth) Refresh(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshCalls++
	if o.refreshErr != nil {
		return nil, o.refreshErr
	}
	return &model.OAuthToken{
		AccessToken:  "at-refreshed",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (o *fakeOAuth) Revoke(ctx context.Context, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.revokedTokens = append(o.revokedTokens, token)
	return nil
}
