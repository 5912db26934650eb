package documents

import "context"

// Table persists document metadata rows.
type Table interface {
	Insert(ctx context.Context, doc Document) error
	// ListByOwner returns the owner's rows, newest UploadedAt first.
	ListByOwner(ctx context.Context, userID string) ([]Document, error)
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	Delete(ctx context.Context, userID, documentID string) error
}
