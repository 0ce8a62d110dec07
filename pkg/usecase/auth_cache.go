package usecase

import (
	"sync"
	"time"
)

const stateCacheTTL = 10 * time.Minute

type stateEntry struct {
	slackUserID string
	expiresAt   time.Time
}

// stateCache binds OAuth state strings to the Slack user who started the
// flow. Entries are consume-once.
type stateCache struct {
	cache sync.Map
}

func newStateCache() *stateCache {
	return &stateCache{}
}

func (c *stateCache) put(state, slackUserID string) {
	c.cache.Store(state, &stateEntry{
		slackUserID: slackUserID,
		expiresAt:   time.Now().Add(stateCacheTTL),
	})
}

// consume returns the Slack user bound to the state and removes the
// entry. Expired or unknown states return false.
func (c *stateCache) consume(state string) (string, bool) {
	val, ok := c.cache.LoadAndDelete(state)
	if !ok {
		return "", false
	}

	entry := val.(*stateEntry)
	if time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.slackUserID, true
}
