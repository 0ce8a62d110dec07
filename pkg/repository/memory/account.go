package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[types.AccountID]*model.Account
}

func newAccountRepository() *accountRepository {
	return &accountRepository{
		accounts: make(map[types.AccountID]*model.Account),
	}
}

func copyAccount(a *model.Account) *model.Account {
	copied := *a
	return &copied
}

func (r *accountRepository) Put(ctx context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyAccount(account)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()

	r.accounts[stored.ID] = stored
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id types.AccountID) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrAccountNotFound, "account not found", goerr.V("accountID", id))
	}
	return copyAccount(account), nil
}

func (r *accountRepository) GetBySlackUserID(ctx context.Context, slackUserID string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.SlackUserID == slackUserID {
			return copyAccount(account), nil
		}
	}
	return nil, goerr.Wrap(types.ErrAccountNotFound, "no account for slack user", goerr.V("slackUserID", slackUserID))
}

func (r *accountRepository) GetByChannelID(ctx context.Context, channelID types.ChannelID) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if channelID != "" {
		for _, account := range r.accounts {
			if account.ChannelID == channelID {
				return copyAccount(account), nil
			}
		}
	}
	return nil, goerr.Wrap(types.ErrChannelNotFound, "unknown watch channel", goerr.V("channelID", channelID))
}

func (r *accountRepository) List(ctx context.Context) ([]*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		result = append(result, copyAccount(account))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (r *accountRepository) Delete(ctx context.Context, id types.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[id]; !exists {
		return goerr.Wrap(types.ErrAccountNotFound, "account not found", goerr.V("accountID", id))
	}

	delete(r.accounts, id)
	return nil
}
