package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Account() AccountRepository
	Subscription() SubscriptionRepository
	File() FileRepository

	Close() error
}
