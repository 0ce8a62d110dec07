package types

// AccountID is the Google Drive user (permission) ID of a linked account
type AccountID string

func (x AccountID) String() string {
	return string(x)
}

// FileID is the Google Drive file ID
type FileID string

func (x FileID) String() string {
	return string(x)
}

// SubscriptionID identifies one (conversation, account, file) binding
type SubscriptionID string

func (x SubscriptionID) String() string {
	return string(x)
}

// ChannelID is the Drive watch channel ID registered for an account
type ChannelID string

func (x ChannelID) String() string {
	return string(x)
}
