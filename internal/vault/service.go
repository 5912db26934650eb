package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"docvault-api/internal/documents"
	"docvault-api/internal/shared/metrics"
	"docvault-api/internal/shared/notify"
	"docvault-api/internal/shared/telemetry"
	"docvault-api/internal/shared/util"
)

var (
	ErrNoFile          = errors.New("no file selected")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoPublicURL     = errors.New("public url missing")
)

var allowedTypes = map[string]struct{}{
	"application/pdf":    {},
	"image/jpeg":         {},
	"image/png":          {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// IsAllowedType reports whether a declared MIME type may be uploaded.
func IsAllowedType(contentType string) bool {
	mt := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	_, ok := allowedTypes[mt]
	return ok
}

// Repository is the document adapter the workflows drive.
type Repository interface {
	Lister
	Get(ctx context.Context, userID, documentID string) (documents.Document, error)
	Upload(ctx context.Context, userID string, in documents.UploadInput) (documents.Document, error)
	Remove(ctx context.Context, doc documents.Document) error
	Open(ctx context.Context, doc documents.Document) (io.ReadCloser, error)
}

// Clipboard receives shared links.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// CapturedClipboard keeps the last text written to it.
type CapturedClipboard struct {
	Text string
}

func (c *CapturedClipboard) WriteText(_ context.Context, text string) error {
	c.Text = text
	return nil
}

// UploadRequest is one file chosen for upload.
type UploadRequest struct {
	FileName    string
	ContentType string
	Body        io.Reader
	Name        string
	Category    string
	Description string
}

// ViewerKind selects how a document is previewed.
type ViewerKind string

const (
	ViewerPDF   ViewerKind = "pdf"
	ViewerImage ViewerKind = "image"
	ViewerOther ViewerKind = "other"
)

// Viewer describes how to present a document.
type Viewer struct {
	Document documents.Document
	URL      string
	Kind     ViewerKind
	Inline   bool
}

// DownloadTarget is what the browser should save.
type DownloadTarget struct {
	Document documents.Document
	URL      string
	FileName string
}

// Dashboard is the filtered document list with collection stats.
type Dashboard struct {
	Documents []documents.Document
	Stats     Stats
	Filter    Filter
}

// FilterUpdate changes dashboard filter state. Nil fields are left alone.
type FilterUpdate struct {
	Search   *string
	Category *string
	ViewMode *string
}

// Service runs the dashboard workflows for authenticated owners. Every
// outcome is reported to the notifier passed to each call.
type Service struct {
	Repo       Repository
	Workspaces *Workspaces
}

// NewService builds a Service.
func NewService(repo Repository, workspaces *Workspaces) *Service {
	return &Service{Repo: repo, Workspaces: workspaces}
}

// Dashboard applies update to the owner's filter state and returns the
// resulting view.
func (s *Service) Dashboard(ctx context.Context, owner string, update FilterUpdate, n notify.Notifier) (Dashboard, error) {
	w, err := s.Workspaces.Get(ctx, owner)
	if err != nil {
		n.Notify(notify.Failure("Error", "Failed to load documents"))
		return Dashboard{}, err
	}
	var out Dashboard
	err = w.Do(func(vm *ViewModel) error {
		if update.Category != nil {
			if err := vm.SetCategory(*update.Category); err != nil {
				return err
			}
		}
		if update.ViewMode != nil {
			if err := vm.SetViewMode(*update.ViewMode); err != nil {
				return err
			}
		}
		if update.Search != nil {
			vm.SetSearch(*update.Search)
		}
		out = snapshot(vm)
		return nil
	})
	return out, err
}

// Refresh reloads the owner's documents from the table.
func (s *Service) Refresh(ctx context.Context, owner string, n notify.Notifier) (Dashboard, error) {
	w, err := s.Workspaces.Reload(ctx, owner)
	if err != nil {
		n.Notify(notify.Failure("Error", "Failed to load documents"))
		return Dashboard{}, err
	}
	var out Dashboard
	_ = w.Do(func(vm *ViewModel) error {
		out = snapshot(vm)
		return nil
	})
	return out, nil
}

// Upload validates the file, stores it and prepends the new record. Nothing
// reaches the repository unless validation passes.
func (s *Service) Upload(ctx context.Context, owner string, req UploadRequest, n notify.Notifier) (documents.Document, error) {
	if req.Body == nil || strings.TrimSpace(req.FileName) == "" {
		metrics.IncUpload("rejected")
		n.Notify(notify.Failure("Error", "Please select a file to upload"))
		return documents.Document{}, ErrNoFile
	}
	if !IsAllowedType(req.ContentType) {
		metrics.IncUpload("rejected")
		n.Notify(notify.Failure("Invalid File Type", "Only PDF, DOC, DOCX, JPG, and PNG files are allowed."))
		return documents.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedType, req.ContentType)
	}
	category, err := documents.ParseCategory(req.Category)
	if err != nil {
		metrics.IncUpload("rejected")
		n.Notify(notify.Failure("Error", err.Error()))
		return documents.Document{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = util.BaseName(req.FileName)
	}

	doc, err := s.Repo.Upload(ctx, owner, documents.UploadInput{
		Name:        name,
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Body:        req.Body,
	})
	if err != nil {
		metrics.IncUpload("failed")
		msg := err.Error()
		if msg == "" {
			msg = "Error uploading file"
		}
		n.Notify(notify.Failure("Upload Failed", msg))
		return documents.Document{}, err
	}
	metrics.IncUpload("ok")

	w, err := s.Workspaces.Get(ctx, owner)
	if err != nil {
		// The record is stored; the next load picks it up.
		telemetry.FromContext(ctx).Warn("vault.upload.workspace_unavailable",
			zap.String("user_id", owner),
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	} else {
		_ = w.Do(func(vm *ViewModel) error {
			vm.Prepend(doc)
			return nil
		})
	}
	n.Notify(notify.Info("Success", "Document uploaded successfully"))
	return doc, nil
}

// Share copies the document's public URL to the clipboard and marks it
// shared in the workspace. The flag is not persisted.
func (s *Service) Share(ctx context.Context, owner, id string, clip Clipboard, n notify.Notifier) (documents.Document, error) {
	w, doc, err := s.find(ctx, owner, id, n)
	if err != nil {
		return documents.Document{}, err
	}
	if doc.PublicURL == "" {
		n.Notify(notify.Failure("Error", "Cannot share this document. Public URL missing."))
		return documents.Document{}, ErrNoPublicURL
	}
	if err := clip.WriteText(ctx, doc.PublicURL); err != nil {
		n.Notify(notify.Failure("Error", "Failed to copy link to clipboard"))
		return documents.Document{}, fmt.Errorf("write clipboard: %w", err)
	}
	_ = w.Do(func(vm *ViewModel) error {
		vm.MarkShared(id)
		doc, _ = vm.Find(id)
		return nil
	})
	n.Notify(notify.Info("Share Link Copied", "The document public link has been copied to clipboard."))
	return doc, nil
}

// View describes how to preview the document. PDFs and images render inline.
func (s *Service) View(ctx context.Context, owner, id string, n notify.Notifier) (Viewer, error) {
	_, doc, err := s.find(ctx, owner, id, n)
	if err != nil {
		return Viewer{}, err
	}
	if doc.PublicURL == "" {
		n.Notify(notify.Failure("Error", "File not available to view."))
		return Viewer{}, ErrNoPublicURL
	}
	kind := viewerKind(doc.MimeType)
	return Viewer{
		Document: doc,
		URL:      doc.PublicURL,
		Kind:     kind,
		Inline:   kind != ViewerOther,
	}, nil
}

// Download names the file the browser should save, using the display name
// and the stored file's extension when the name has none.
func (s *Service) Download(ctx context.Context, owner, id string, n notify.Notifier) (DownloadTarget, error) {
	_, doc, err := s.find(ctx, owner, id, n)
	if err != nil {
		return DownloadTarget{}, err
	}
	if doc.PublicURL == "" {
		n.Notify(notify.Failure("Error", "File not available to download"))
		return DownloadTarget{}, ErrNoPublicURL
	}
	n.Notify(notify.Info("Download Started", "Downloading "+doc.Name))
	return DownloadTarget{
		Document: doc,
		URL:      doc.PublicURL,
		FileName: DownloadName(doc),
	}, nil
}

// Open streams the document's blob.
func (s *Service) Open(ctx context.Context, doc documents.Document) (io.ReadCloser, error) {
	return s.Repo.Open(ctx, doc)
}

// Delete removes the document from storage and the workspace.
func (s *Service) Delete(ctx context.Context, owner, id string, n notify.Notifier) error {
	w, doc, err := s.find(ctx, owner, id, n)
	if err != nil {
		return err
	}
	err = s.Repo.Remove(ctx, doc)
	switch {
	case err == nil:
		metrics.IncDelete("ok")
	case errors.Is(err, documents.ErrNotFound):
		// Deleted elsewhere in the meantime; the outcome is the same.
		metrics.IncDelete("already_deleted")
	case errors.Is(err, documents.ErrDanglingRow):
		metrics.IncDelete("dangling")
		n.Notify(notify.Failure("Error", "Failed to delete document"))
		return err
	default:
		metrics.IncDelete("failed")
		n.Notify(notify.Failure("Error", "Failed to delete document"))
		return err
	}
	_ = w.Do(func(vm *ViewModel) error {
		vm.Remove(id)
		return nil
	})
	n.Notify(notify.Info("Deleted", doc.Name+" has been deleted"))
	return nil
}

// find looks in the workspace first, then the table: another instance may
// have stored the record after this workspace was loaded.
func (s *Service) find(ctx context.Context, owner, id string, n notify.Notifier) (*Workspace, documents.Document, error) {
	w, err := s.Workspaces.Get(ctx, owner)
	if err != nil {
		n.Notify(notify.Failure("Error", "Failed to load documents"))
		return nil, documents.Document{}, err
	}
	var (
		doc documents.Document
		ok  bool
	)
	_ = w.Do(func(vm *ViewModel) error {
		doc, ok = vm.Find(id)
		return nil
	})
	if ok {
		return w, doc, nil
	}

	doc, err = s.Repo.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			n.Notify(notify.Failure("Error", "Document not found"))
			return nil, documents.Document{}, documents.ErrNotFound
		}
		n.Notify(notify.Failure("Error", "Failed to load documents"))
		return nil, documents.Document{}, err
	}
	_ = w.Do(func(vm *ViewModel) error {
		vm.Prepend(doc)
		doc, _ = vm.Find(id)
		return nil
	})
	return w, doc, nil
}

// DownloadName is the suggested filename for a document.
func DownloadName(doc documents.Document) string {
	name := strings.TrimSpace(doc.Name)
	ext := util.Extension(doc.StoragePath)
	if name == "" {
		name = "download"
	}
	if ext != "" && util.Extension(name) == "" {
		name += "." + ext
	}
	return name
}

func viewerKind(mimeType string) ViewerKind {
	mt := strings.ToLower(mimeType)
	switch {
	case mt == "application/pdf":
		return ViewerPDF
	case strings.HasPrefix(mt, "image/"):
		return ViewerImage
	default:
		return ViewerOther
	}
}

func snapshot(vm *ViewModel) Dashboard {
	return Dashboard{
		Documents: vm.Filtered(),
		Stats:     vm.Stats(),
		Filter:    vm.Filter(),
	}
}
