package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const filesCollection = "files"

type fileRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.FileRepository = &fileRepository{}

func newFileRepository(client *firestore.Client) *fileRepository {
	return &fileRepository{
		client: client,
	}
}

// fileDoc is the Firestore persistence model
type fileDoc struct {
	ID         string    `firestore:"id"`
	Name       string    `firestore:"name"`
	IconURL    string    `firestore:"icon_url"`
	OwnerEmail string    `firestore:"owner_email"`
	URL        string    `firestore:"url"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

func (r *fileRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + filesCollection)
	}
	return r.client.Collection(filesCollection)
}

func (r *fileRepository) Put(ctx context.Context, file *model.File) error {
	doc := &fileDoc{
		ID:         string(file.ID),
		Name:       file.Name,
		IconURL:    file.IconURL,
		OwnerEmail: file.OwnerEmail,
		URL:        file.URL,
		UpdatedAt:  time.Now().UTC(),
	}
	if _, err := r.collection().Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put file", goerr.V("fileID", file.ID))
	}
	return nil
}

func (r *fileRepository) Get(ctx context.Context, id types.FileID) (*model.File, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrFileNotFound, "file not cached", goerr.V("fileID", id))
		}
		return nil, goerr.Wrap(err, "failed to get file", goerr.V("fileID", id))
	}

	var d fileDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal file", goerr.V("docID", doc.Ref.ID))
	}

	return &model.File{
		ID:         types.FileID(d.ID),
		Name:       d.Name,
		IconURL:    d.IconURL,
		OwnerEmail: d.OwnerEmail,
		URL:        d.URL,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}
