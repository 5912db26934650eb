package vault

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docvault-api/internal/documents"
	"docvault-api/internal/shared/notify"
	"docvault-api/internal/shared/server/middleware"
	"docvault-api/internal/shared/server/respond"
	"docvault-api/internal/shared/telemetry"
	"docvault-api/internal/shared/util"
)

// Handler exposes the dashboard workflows over HTTP.
type Handler struct {
	Service *Service
}

// NewHandler constructs a vault handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

// RegisterRoutes attaches document routes; rg must run Auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.POST("/documents", h.upload)
	rg.POST("/documents/refresh", h.refresh)
	rg.POST("/documents/:id/share", h.share)
	rg.GET("/documents/:id/view", h.view)
	rg.GET("/documents/:id/download", h.download)
	rg.DELETE("/documents/:id", h.delete)
}

type documentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	FileType    string    `json:"fileType"`
	FileSize    int64     `json:"fileSize"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Shared      bool      `json:"shared"`
	Description string    `json:"description,omitempty"`
	FilePath    string    `json:"filePath"`
	PublicURL   string    `json:"publicUrl,omitempty"`
}

type dashboardResponse struct {
	Documents     []documentResponse    `json:"documents"`
	Stats         Stats                 `json:"stats"`
	Filter        Filter                `json:"filter"`
	Categories    []documents.Category  `json:"categories"`
	Notifications []notify.Notification `json:"notifications"`
}

type viewerResponse struct {
	Document documentResponse `json:"document"`
	URL      string           `json:"url"`
	Kind     ViewerKind       `json:"kind"`
	Inline   bool             `json:"inline"`
}

func toDocumentResponse(d documents.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		Name:        d.Name,
		Category:    string(d.Category),
		FileType:    d.MimeType,
		FileSize:    d.SizeBytes,
		UploadedAt:  d.UploadedAt,
		Shared:      d.Shared,
		Description: d.Description,
		FilePath:    d.StoragePath,
		PublicURL:   d.PublicURL,
	}
}

func toDashboardResponse(d Dashboard, rec *notify.Recorder) dashboardResponse {
	docs := make([]documentResponse, 0, len(d.Documents))
	for _, doc := range d.Documents {
		docs = append(docs, toDocumentResponse(doc))
	}
	return dashboardResponse{
		Documents:     docs,
		Stats:         d.Stats,
		Filter:        d.Filter,
		Categories:    documents.Categories(),
		Notifications: rec.All(),
	}
}

func (h *Handler) list(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var update FilterUpdate
	if v, ok := c.GetQuery("search"); ok {
		update.Search = &v
	}
	if v, ok := c.GetQuery("category"); ok {
		update.Category = &v
	}
	if v, ok := c.GetQuery("view"); ok {
		update.ViewMode = &v
	}

	rec := newRecorder()
	dash, err := h.Service.Dashboard(c.Request.Context(), owner, update, notifier(rec))
	if err != nil {
		writeError(c, err, rec)
		return
	}
	respond.OK(c, toDashboardResponse(dash, rec))
}

func (h *Handler) refresh(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	rec := newRecorder()
	dash, err := h.Service.Refresh(c.Request.Context(), owner, notifier(rec))
	if err != nil {
		writeError(c, err, rec)
		return
	}
	respond.OK(c, toDashboardResponse(dash, rec))
}

func (h *Handler) upload(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	req := UploadRequest{
		Name:        c.PostForm("name"),
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
	}
	fileHeader, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid multipart body", nil)
		return
	}
	if fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to read file", nil)
			return
		}
		defer file.Close()
		req.FileName = fileHeader.Filename
		req.ContentType = declaredType(fileHeader)
		req.Body = file
	}

	rec := newRecorder()
	doc, err := h.Service.Upload(c.Request.Context(), owner, req, notifier(rec))
	if err != nil {
		writeError(c, err, rec)
		return
	}
	c.Set(middleware.DocumentIDKey, doc.ID)
	respond.Created(c, gin.H{
		"document":      toDocumentResponse(doc),
		"notifications": rec.All(),
	})
}

func (h *Handler) share(c *gin.Context) {
	owner, id, ok := ownerAndID(c)
	if !ok {
		return
	}
	rec := newRecorder()
	clip := &CapturedClipboard{}
	doc, err := h.Service.Share(c.Request.Context(), owner, id, clip, notifier(rec))
	if err != nil {
		writeError(c, err, rec)
		return
	}
	respond.OK(c, gin.H{
		"clipboard":     clip.Text,
		"document":      toDocumentResponse(doc),
		"notifications": rec.All(),
	})
}

func (h *Handler) view(c *gin.Context) {
	owner, id, ok := ownerAndID(c)
	if !ok {
		return
	}
	rec := newRecorder()
	v, err := h.Service.View(c.Request.Context(), owner, id, notifier(rec))
	if err != nil {
		writeError(c, err, rec)
		return
	}
	respond.OK(c, gin.H{
		"viewer": viewerResponse{
			Document: toDocumentResponse(v.Document),
			URL:      v.URL,
			Kind:     v.Kind,
			Inline:   v.Inline,
		},
		"notifications": rec.All(),
	})
}

func (h *Handler) download(c *gin.Context) {
	owner, id, ok := ownerAndID(c)
	if !ok {
		return
	}
	rec := newRecorder()
	ctx := c.Request.Context()
	target, err := h.Service.Download(ctx, owner, id, notifier(rec))
	if err != nil {
		writeError(c, err, rec)
		return
	}
	body, err := h.Service.Open(ctx, target.Document)
	if err != nil {
		writeError(c, err, rec)
		return
	}
	defer body.Close()

	contentType := target.Document.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+util.SanitizeFileName(target.FileName)+`"`)
	c.Header("Content-Type", contentType)
	if target.Document.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(target.Document.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		telemetry.L().Warn("vault.download.stream_failed",
			zap.String("user_id", owner),
			zap.String("document_id", id),
			zap.Error(err),
		)
	}
}

func (h *Handler) delete(c *gin.Context) {
	owner, id, ok := ownerAndID(c)
	if !ok {
		return
	}
	rec := newRecorder()
	if err := h.Service.Delete(c.Request.Context(), owner, id, notifier(rec)); err != nil {
		writeError(c, err, rec)
		return
	}
	respond.OK(c, gin.H{"notifications": rec.All()})
}

func requireOwner(c *gin.Context) (string, bool) {
	owner := middleware.UserIDFromContext(c)
	if owner == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return "", false
	}
	return owner, true
}

func ownerAndID(c *gin.Context) (string, string, bool) {
	owner, ok := requireOwner(c)
	if !ok {
		return "", "", false
	}
	id := c.Param("id")
	c.Set(middleware.DocumentIDKey, id)
	return owner, id, true
}

func newRecorder() *notify.Recorder {
	return &notify.Recorder{}
}

func notifier(rec *notify.Recorder) notify.Notifier {
	return notify.Multi(rec, notify.Logger{L: telemetry.L()})
}

// declaredType is the MIME type the browser sent for the part.
func declaredType(fh *multipart.FileHeader) string {
	return fh.Header.Get("Content-Type")
}

func writeError(c *gin.Context, err error, rec *notify.Recorder) {
	details := gin.H{"notifications": rec.All()}
	switch {
	case errors.Is(err, ErrNoFile):
		respond.Error(c, http.StatusBadRequest, "file_required", "file is required", details)
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_file_type", "only PDF, DOC, DOCX, JPG and PNG files are allowed", details)
	case errors.Is(err, documents.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), details)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", details)
	case errors.Is(err, ErrNoPublicURL):
		respond.Error(c, http.StatusConflict, "public_url_missing", "document has no public URL", details)
	case errors.Is(err, context.Canceled):
		respond.Error(c, 499, "client_closed_request", "request cancelled", details)
	default:
		telemetry.L().Error("vault.request_failed",
			zap.String("path", c.FullPath()),
			zap.Bool("orphaned_blob", errors.Is(err, documents.ErrOrphanedBlob)),
			zap.Bool("dangling_row", errors.Is(err, documents.ErrDanglingRow)),
			zap.Error(err),
		)
		respond.Error(c, http.StatusInternalServerError, "internal_error", "document operation failed", details)
	}
}
