package memory

import (
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-memory repository for development and tests
type Memory struct {
	account      *accountRepository
	subscription *subscriptionRepository
	file         *fileRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		account:      newAccountRepository(),
		subscription: newSubscriptionRepository(),
		file:         newFileRepository(),
	}
}

func (m *Memory) Account() interfaces.AccountRepository {
	return m.account
}

func (m *Memory) Subscription() interfaces.SubscriptionRepository {
	return m.subscription
}

func (m *Memory) File() interfaces.FileRepository {
	return m.file
}

func (m *Memory) Close() error {
	return nil
}
