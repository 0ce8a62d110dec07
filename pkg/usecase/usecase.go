package usecase

import (
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
)

const (
	// defaultFreshnessWindow bounds how far a comment's timestamp may
	// drift from wall clock and still count as new. Clock skew between
	// the provider and this service makes negative drift legitimate.
	defaultFreshnessWindow = 30 * time.Second

	// defaultDigestHourUTC is the fire hour assigned when a user picks
	// daily or weekly delivery without naming a time.
	defaultDigestHourUTC = 9
)

type UseCases struct {
	repo      interfaces.Repository
	drive     interfaces.DriveClient
	oauth     interfaces.OAuthClient
	messenger interfaces.Messenger

	// webhookURL is the public address Drive pushes change pings to
	webhookURL string

	// oauthClientID is the expected audience of provider ID tokens.
	// Empty skips the audience check.
	oauthClientID string

	freshnessWindow  time.Duration
	digestHourUTC    int
	digestWeekdayUTC time.Weekday

	states *stateCache

	// now is swapped in tests
	now func() time.Time
}

type Option func(*UseCases)

func WithFreshnessWindow(w time.Duration) Option {
	return func(uc *UseCases) {
		uc.freshnessWindow = w
	}
}

func WithDigestDefaults(hourUTC int, weekday time.Weekday) Option {
	return func(uc *UseCases) {
		uc.digestHourUTC = hourUTC
		uc.digestWeekdayUTC = weekday
	}
}

func WithOAuthAudience(clientID string) Option {
	return func(uc *UseCases) {
		uc.oauthClientID = clientID
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, drive interfaces.DriveClient, oauth interfaces.OAuthClient, messenger interfaces.Messenger, webhookURL string, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:             repo,
		drive:            drive,
		oauth:            oauth,
		messenger:        messenger,
		webhookURL:       webhookURL,
		freshnessWindow:  defaultFreshnessWindow,
		digestHourUTC:    defaultDigestHourUTC,
		digestWeekdayUTC: time.Monday,
		states:           newStateCache(),
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
