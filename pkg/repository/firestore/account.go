package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const accountsCollection = "accounts"

type accountRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.AccountRepository = &accountRepository{}

func newAccountRepository(client *firestore.Client) *accountRepository {
	return &accountRepository{
		client: client,
	}
}

// accountDoc is the Firestore persistence model
type accountDoc struct {
	ID                  string    `firestore:"id"`
	Email               string    `firestore:"email"`
	Name                string    `firestore:"name"`
	SlackUserID         string    `firestore:"slack_user_id"`
	BotID               string    `firestore:"bot_id"`
	HomeConversationID  string    `firestore:"home_conversation_id"`
	ChannelID           string    `firestore:"channel_id"`
	ResourceID          string    `firestore:"resource_id"`
	Cursor              string    `firestore:"cursor"`
	AccessToken         string    `firestore:"access_token"`
	RefreshToken        string    `firestore:"refresh_token"`
	TokenExpiresAt      time.Time `firestore:"token_expires_at"`
	ReceiveNewFileShare bool      `firestore:"receive_new_file_share"`
	CreatedAt           time.Time `firestore:"created_at"`
	UpdatedAt           time.Time `firestore:"updated_at"`
}

func (r *accountRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + accountsCollection)
	}
	return r.client.Collection(accountsCollection)
}

func (r *accountRepository) toDoc(a *model.Account) *accountDoc {
	return &accountDoc{
		ID:                  string(a.ID),
		Email:               a.Email,
		Name:                a.Name,
		SlackUserID:         a.SlackUserID,
		BotID:               a.BotID,
		HomeConversationID:  a.HomeConversationID,
		ChannelID:           string(a.ChannelID),
		ResourceID:          a.ResourceID,
		Cursor:              a.Cursor,
		AccessToken:         a.AccessToken,
		RefreshToken:        a.RefreshToken,
		TokenExpiresAt:      a.TokenExpiresAt,
		ReceiveNewFileShare: a.ReceiveNewFileShare,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func (r *accountRepository) fromDoc(doc *accountDoc) *model.Account {
	return &model.Account{
		ID:                  types.AccountID(doc.ID),
		Email:               doc.Email,
		Name:                doc.Name,
		SlackUserID:         doc.SlackUserID,
		BotID:               doc.BotID,
		HomeConversationID:  doc.HomeConversationID,
		ChannelID:           types.ChannelID(doc.ChannelID),
		ResourceID:          doc.ResourceID,
		Cursor:              doc.Cursor,
		AccessToken:         doc.AccessToken,
		RefreshToken:        doc.RefreshToken,
		TokenExpiresAt:      doc.TokenExpiresAt,
		ReceiveNewFileShare: doc.ReceiveNewFileShare,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
}

func (r *accountRepository) Put(ctx context.Context, account *model.Account) error {
	stored := *account
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()

	if _, err := r.collection().Doc(string(stored.ID)).Set(ctx, r.toDoc(&stored)); err != nil {
		return goerr.Wrap(err, "failed to put account", goerr.V("accountID", account.ID))
	}
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id types.AccountID) (*model.Account, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrAccountNotFound, "account not found", goerr.V("accountID", id))
		}
		return nil, goerr.Wrap(err, "failed to get account", goerr.V("accountID", id))
	}

	var d accountDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal account", goerr.V("docID", doc.Ref.ID))
	}
	return r.fromDoc(&d), nil
}

func (r *accountRepository) GetBySlackUserID(ctx context.Context, slackUserID string) (*model.Account, error) {
	return r.getByField(ctx, "slack_user_id", slackUserID, types.ErrAccountNotFound)
}

func (r *accountRepository) GetByChannelID(ctx context.Context, channelID types.ChannelID) (*model.Account, error) {
	if channelID == "" {
		return nil, goerr.Wrap(types.ErrChannelNotFound, "empty watch channel ID")
	}
	return r.getByField(ctx, "channel_id", string(channelID), types.ErrChannelNotFound)
}

func (r *accountRepository) getByField(ctx context.Context, field, value string, notFound error) (*model.Account, error) {
	iter := r.collection().Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(notFound, "account not found", goerr.V(field, value))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query account", goerr.V(field, value))
	}

	var d accountDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal account", goerr.V("docID", doc.Ref.ID))
	}
	return r.fromDoc(&d), nil
}

func (r *accountRepository) List(ctx context.Context) ([]*model.Account, error) {
	iter := r.collection().OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var accounts []*model.Account
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate accounts")
		}

		var d accountDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal account", goerr.V("docID", doc.Ref.ID))
		}
		accounts = append(accounts, r.fromDoc(&d))
	}
	return accounts, nil
}

func (r *accountRepository) Delete(ctx context.Context, id types.AccountID) error {
	docRef := r.collection().Doc(string(id))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrAccountNotFound, "account not found", goerr.V("accountID", id))
		}
		return goerr.Wrap(err, "failed to get account for delete", goerr.V("accountID", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete account", goerr.V("accountID", id))
	}
	return nil
}
