package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docvault-api/internal/shared/metrics"
	"docvault-api/internal/shared/storage/object"
	"docvault-api/internal/shared/telemetry"
	"docvault-api/internal/shared/util"
)

const anonymousOwner = "anonymous"

// UploadInput describes one file to store.
type UploadInput struct {
	Name        string
	Category    Category
	Description string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Service pairs the blob store with the metadata table.
type Service struct {
	Store object.Store
	Table Table
	Now   func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

// NewService constructs a Service.
func NewService(store object.Store, table Table) *Service {
	return &Service{Store: store, Table: table, Now: time.Now}
}

// List returns the owner's documents newest first with public URLs resolved.
func (s *Service) List(ctx context.Context, userID string) ([]Document, error) {
	docs, err := s.Table.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for i := range docs {
		docs[i].PublicURL = s.ResolvePublicURL(docs[i].StoragePath)
		docs[i].Shared = false
	}
	return docs, nil
}

// Get returns one of the owner's documents. Foreign IDs are ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := s.Table.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	doc.PublicURL = s.ResolvePublicURL(doc.StoragePath)
	return doc, nil
}

// Upload puts the blob, then inserts the row. If the insert fails the blob
// is removed again; when that removal also fails ErrOrphanedBlob is returned.
func (s *Service) Upload(ctx context.Context, userID string, in UploadInput) (Document, error) {
	if strings.TrimSpace(in.FileName) == "" || in.Body == nil {
		return Document{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if in.Category == "" {
		in.Category = CategoryOther
	}
	if _, err := ParseCategory(string(in.Category)); err != nil {
		return Document{}, err
	}

	now := s.now()
	key := StorageKey(userID, in.FileName, s.stamp(now))

	size, err := s.Store.Put(ctx, key, in.ContentType, in.Body)
	if err != nil {
		return Document{}, fmt.Errorf("store blob: %w", err)
	}

	doc := Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		Category:    in.Category,
		MimeType:    in.ContentType,
		SizeBytes:   size,
		UploadedAt:  now,
		Description: in.Description,
		StoragePath: key,
	}

	if err := s.Table.Insert(ctx, doc); err != nil {
		insertErr := fmt.Errorf("insert metadata: %w", err)
		// The request context may already be cancelled; cleanup must still run.
		if rmErr := s.Store.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			metrics.IncCompensation("orphaned")
			telemetry.FromContext(ctx).Error("documents.upload.orphaned_blob",
				zap.String("user_id", userID),
				zap.String("storage_path", key),
				zap.Error(insertErr),
				zap.NamedError("cleanup_error", rmErr),
			)
			return Document{}, errors.Join(ErrOrphanedBlob, insertErr, rmErr)
		}
		metrics.IncCompensation("removed")
		telemetry.FromContext(ctx).Warn("documents.upload.compensated",
			zap.String("user_id", userID),
			zap.String("storage_path", key),
			zap.Error(insertErr),
		)
		return Document{}, insertErr
	}

	doc.PublicURL = s.ResolvePublicURL(key)
	return doc, nil
}

// Remove deletes the blob, then the row. A blob failure leaves both intact.
// A row failure after the blob is gone is reported as ErrDanglingRow. A row
// that is already gone (a concurrent delete) is ErrNotFound: nothing dangles.
func (s *Service) Remove(ctx context.Context, doc Document) error {
	if doc.ID == "" || doc.StoragePath == "" {
		return fmt.Errorf("%w: document id and storage path are required", ErrInvalidInput)
	}
	if err := s.Store.Remove(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	if err := s.Table.Delete(ctx, doc.UserID, doc.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.FromContext(ctx).Info("documents.remove.already_deleted",
				zap.String("user_id", doc.UserID),
				zap.String("document_id", doc.ID),
			)
			return fmt.Errorf("delete metadata: %w", ErrNotFound)
		}
		telemetry.FromContext(ctx).Error("documents.remove.dangling_row",
			zap.String("user_id", doc.UserID),
			zap.String("document_id", doc.ID),
			zap.String("storage_path", doc.StoragePath),
			zap.Error(err),
		)
		return errors.Join(ErrDanglingRow, fmt.Errorf("delete metadata: %w", err))
	}
	return nil
}

// Open streams the document's blob.
func (s *Service) Open(ctx context.Context, doc Document) (io.ReadCloser, error) {
	rc, err := s.Store.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return rc, nil
}

// ResolvePublicURL derives the public address for a storage path.
func (s *Service) ResolvePublicURL(storagePath string) string {
	if storagePath == "" {
		return ""
	}
	return s.Store.PublicURL(storagePath)
}

// StorageKey builds "<owner>/<millis>.<ext>", using "anonymous" for an empty owner.
// A file name without a dot gets no extension segment rather than the whole name.
func StorageKey(userID, fileName string, millis int64) string {
	owner := strings.TrimSpace(userID)
	if owner == "" {
		owner = anonymousOwner
	}
	key := owner + "/" + strconv.FormatInt(millis, 10)
	if ext := util.Extension(fileName); ext != "" {
		key += "." + ext
	}
	return key
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// stamp returns now in milliseconds, bumped so two uploads handled by this
// process never share a key.
func (s *Service) stamp(now time.Time) int64 {
	ms := now.UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	if ms <= s.lastStamp {
		ms = s.lastStamp + 1
	}
	s.lastStamp = ms
	return ms
}
