package firestore

import (
	"context"
	"fmt"
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

const (
	subscriptionsCollection = "subscriptions"

	// subscriptionTriplesCollection backs the uniqueness invariant on
	// (conversation, bot, file): its doc IDs are the triple, created
	// inside the same transaction as the subscription row.
	subscriptionTriplesCollection = "subscription_triples"
)

type subscriptionRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.SubscriptionRepository = &subscriptionRepository{}

func newSubscriptionRepository(client *firestore.Client) *subscriptionRepository {
	return &subscriptionRepository{
		client: client,
	}
}

// commentNoticeDoc is the Firestore persistence model for one buffered
// notification payload
type commentNoticeDoc struct {
	SubscriptionID  string    `firestore:"subscription_id"`
	FileID          string    `firestore:"file_id"`
	FileName        string    `firestore:"file_name"`
	FileURL         string    `firestore:"file_url"`
	FileIconURL     string    `firestore:"file_icon_url"`
	CommentID       string    `firestore:"comment_id"`
	CommentContent  string    `firestore:"comment_content"`
	QuotedContent   string    `firestore:"quoted_content"`
	AuthorName      string    `firestore:"author_name"`
	AuthorEmail     string    `firestore:"author_email"`
	AuthorAvatarURL string    `firestore:"author_avatar_url"`
	CommentedAt     time.Time `firestore:"commented_at"`
}

// subscriptionDoc is the Firestore persistence model
type subscriptionDoc struct {
	ID             string             `firestore:"id"`
	ConversationID string             `firestore:"conversation_id"`
	BotID          string             `firestore:"bot_id"`
	AccountID      string             `firestore:"account_id"`
	FileID         string             `firestore:"file_id"`
	State          string             `firestore:"state"`
	PreviousState  string             `firestore:"previous_state"`
	FireHourUTC    int                `firestore:"fire_hour_utc"`
	FireWeekday    int                `firestore:"fire_weekday"`
	LastCommentID  string             `firestore:"last_comment_id"`
	Pending        []commentNoticeDoc `firestore:"pending"`
	CreatedAt      time.Time          `firestore:"created_at"`
	UpdatedAt      time.Time          `firestore:"updated_at"`
}

func (r *subscriptionRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + subscriptionsCollection)
	}
	return r.client.Collection(subscriptionsCollection)
}

func (r *subscriptionRepository) tripleCollection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + subscriptionTriplesCollection)
	}
	return r.client.Collection(subscriptionTriplesCollection)
}

func tripleDocID(conversationID, botID string, fileID types.FileID) string {
	return fmt.Sprintf("%s:%s:%s", conversationID, botID, fileID)
}

func toNoticeDoc(n model.CommentNotice) commentNoticeDoc {
	return commentNoticeDoc{
		SubscriptionID:  string(n.SubscriptionID),
		FileID:          string(n.FileID),
		FileName:        n.FileName,
		FileURL:         n.FileURL,
		FileIconURL:     n.FileIconURL,
		CommentID:       n.CommentID,
		CommentContent:  n.CommentContent,
		QuotedContent:   n.QuotedContent,
		AuthorName:      n.AuthorName,
		AuthorEmail:     n.AuthorEmail,
		AuthorAvatarURL: n.AuthorAvatarURL,
		CommentedAt:     n.CommentedAt,
	}
}

func fromNoticeDoc(d commentNoticeDoc) model.CommentNotice {
	return model.CommentNotice{
		SubscriptionID:  types.SubscriptionID(d.SubscriptionID),
		FileID:          types.FileID(d.FileID),
		FileName:        d.FileName,
		FileURL:         d.FileURL,
		FileIconURL:     d.FileIconURL,
		CommentID:       d.CommentID,
		CommentContent:  d.CommentContent,
		QuotedContent:   d.QuotedContent,
		AuthorName:      d.AuthorName,
		AuthorEmail:     d.AuthorEmail,
		AuthorAvatarURL: d.AuthorAvatarURL,
		CommentedAt:     d.CommentedAt,
	}
}

func (r *subscriptionRepository) toDoc(s *model.Subscription) *subscriptionDoc {
	pending := make([]commentNoticeDoc, len(s.Pending))
	for i, n := range s.Pending {
		pending[i] = toNoticeDoc(n)
	}
	return &subscriptionDoc{
		ID:             string(s.ID),
		ConversationID: s.ConversationID,
		BotID:          s.BotID,
		AccountID:      string(s.AccountID),
		FileID:         string(s.FileID),
		State:          string(s.State),
		PreviousState:  string(s.PreviousState),
		FireHourUTC:    s.FireHourUTC,
		FireWeekday:    int(s.FireWeekday),
		LastCommentID:  s.LastCommentID,
		Pending:        pending,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (r *subscriptionRepository) fromDoc(d *subscriptionDoc) *model.Subscription {
	var pending []model.CommentNotice
	if len(d.Pending) > 0 {
		pending = make([]model.CommentNotice, len(d.Pending))
		for i, n := range d.Pending {
			pending[i] = fromNoticeDoc(n)
		}
	}
	return &model.Subscription{
		ID:             types.SubscriptionID(d.ID),
		ConversationID: d.ConversationID,
		BotID:          d.BotID,
		AccountID:      types.AccountID(d.AccountID),
		FileID:         types.FileID(d.FileID),
		State:          types.DeliveryState(d.State),
		PreviousState:  types.DeliveryState(d.PreviousState),
		FireHourUTC:    d.FireHourUTC,
		FireWeekday:    time.Weekday(d.FireWeekday),
		LastCommentID:  d.LastCommentID,
		Pending:        pending,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	stored := *sub
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	subRef := r.collection().Doc(string(stored.ID))
	tripleRef := r.tripleCollection().Doc(tripleDocID(stored.ConversationID, stored.BotID, stored.FileID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(tripleRef, map[string]interface{}{
			"subscription_id": string(stored.ID),
			"created_at":      stored.CreatedAt,
		}); err != nil {
			return err
		}
		return tx.Create(subRef, r.toDoc(&stored))
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(types.ErrSubscriptionExists, "subscription already exists",
				goerr.V("conversationID", stored.ConversationID),
				goerr.V("fileID", stored.FileID),
			)
		}
		return goerr.Wrap(err, "failed to create subscription", goerr.V("subscriptionID", stored.ID))
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id types.SubscriptionID) (*model.Subscription, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrSubscriptionNotFound, "subscription not found", goerr.V("subscriptionID", id))
		}
		return nil, goerr.Wrap(err, "failed to get subscription", goerr.V("subscriptionID", id))
	}

	var d subscriptionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal subscription", goerr.V("docID", doc.Ref.ID))
	}
	return r.fromDoc(&d), nil
}

func (r *subscriptionRepository) GetByConversationAndFile(ctx context.Context, conversationID, botID string, fileID types.FileID) (*model.Subscription, error) {
	iter := r.collection().
		Where("conversation_id", "==", conversationID).
		Where("bot_id", "==", botID).
		Where("file_id", "==", string(fileID)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(types.ErrSubscriptionNotFound, "subscription not found",
			goerr.V("conversationID", conversationID),
			goerr.V("fileID", fileID),
		)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query subscription")
	}

	var d subscriptionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal subscription", goerr.V("docID", doc.Ref.ID))
	}
	return r.fromDoc(&d), nil
}

func (r *subscriptionRepository) ListByAccountAndFile(ctx context.Context, accountID types.AccountID, fileID types.FileID) ([]*model.Subscription, error) {
	query := r.collection().
		Where("account_id", "==", string(accountID)).
		Where("file_id", "==", string(fileID))
	return r.list(ctx, query.Documents(ctx))
}

func (r *subscriptionRepository) ListByConversation(ctx context.Context, conversationID string) ([]*model.Subscription, error) {
	query := r.collection().Where("conversation_id", "==", conversationID)
	return r.list(ctx, query.Documents(ctx))
}

func (r *subscriptionRepository) ListByState(ctx context.Context, state types.DeliveryState) ([]*model.Subscription, error) {
	query := r.collection().Where("state", "==", string(state))
	return r.list(ctx, query.Documents(ctx))
}

func (r *subscriptionRepository) list(ctx context.Context, iter *firestore.DocumentIterator) ([]*model.Subscription, error) {
	defer iter.Stop()

	var subs []*model.Subscription
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate subscriptions")
		}

		var d subscriptionDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal subscription", goerr.V("docID", doc.Ref.ID))
		}
		subs = append(subs, r.fromDoc(&d))
	}
	return subs, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	docRef := r.collection().Doc(string(sub.ID))

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrSubscriptionNotFound, "subscription not found", goerr.V("subscriptionID", sub.ID))
		}
		return goerr.Wrap(err, "failed to get subscription for update", goerr.V("subscriptionID", sub.ID))
	}

	var existing subscriptionDoc
	if err := doc.DataTo(&existing); err != nil {
		return goerr.Wrap(err, "failed to unmarshal subscription", goerr.V("docID", doc.Ref.ID))
	}

	stored := *sub
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()

	if _, err := docRef.Set(ctx, r.toDoc(&stored)); err != nil {
		return goerr.Wrap(err, "failed to update subscription", goerr.V("subscriptionID", sub.ID))
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, id types.SubscriptionID) error {
	sub, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	tripleRef := r.tripleCollection().Doc(tripleDocID(sub.ConversationID, sub.BotID, sub.FileID))
	if _, err := tripleRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete subscription triple", goerr.V("subscriptionID", id))
	}
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete subscription", goerr.V("subscriptionID", id))
	}
	return nil
}

func (r *subscriptionRepository) DeleteByAccount(ctx context.Context, accountID types.AccountID) (int, error) {
	subs, err := r.list(ctx, r.collection().Where("account_id", "==", string(accountID)).Documents(ctx))
	if err != nil {
		return 0, err
	}

	var removed int
	for _, sub := range subs {
		if err := r.Delete(ctx, sub.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
