package model

import (
	"strconv"
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// Account is a linked Google Drive identity, one per Slack user. It owns
// the OAuth credential pair, the single global watch channel, and the
// change-feed cursor that bounds how much of the feed has been consumed.
type Account struct {
	ID          types.AccountID
	Email       string
	Name        string
	SlackUserID string
	BotID       string

	// HomeConversationID is the DM conversation with the bot; new-file-share
	// notifications always land here.
	HomeConversationID string

	// Watch channel registered with the Drive changes API. One per account.
	ChannelID  types.ChannelID
	ResourceID string

	// Cursor is the opaque startPageToken of the change feed. Advanced
	// only through AdvanceCursor.
	Cursor string

	AccessToken    string `masq:"secret"`
	RefreshToken   string `masq:"secret"`
	TokenExpiresAt time.Time

	ReceiveNewFileShare bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenExpired reports whether the access token must be refreshed before
// the next provider call.
func (a *Account) TokenExpired(now time.Time) bool {
	return a.AccessToken == "" || !a.TokenExpiresAt.After(now)
}

// AdvanceCursor moves the change-feed cursor forward. Drive issues page
// tokens as numeric strings; when both sides parse as integers the cursor
// never regresses, which protects against a concurrent ping committing an
// older frontier after a newer one. Opaque tokens fall back to
// last-writer-wins, which the provider's monotonic issuance makes safe.
func (a *Account) AdvanceCursor(cursor string) bool {
	if cursor == "" || cursor == a.Cursor {
		return false
	}
	if prev, err := strconv.ParseInt(a.Cursor, 10, 64); err == nil {
		if next, err := strconv.ParseInt(cursor, 10, 64); err == nil && next < prev {
			return false
		}
	}
	a.Cursor = cursor
	return true
}

// ClearCredentials drops the token pair after an unauthorized condition
// so the user can be prompted to re-link.
func (a *Account) ClearCredentials() {
	a.AccessToken = ""
	a.RefreshToken = ""
	a.TokenExpiresAt = time.Time{}
}
