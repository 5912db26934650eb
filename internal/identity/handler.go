package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"docvault-api/internal/shared/notify"
	"docvault-api/internal/shared/server/middleware"
	"docvault-api/internal/shared/server/respond"
	"docvault-api/internal/shared/telemetry"
)

// Handler exposes the session adapter over HTTP. Every request gets its own
// Client, started from the caller's bearer token.
type Handler struct {
	provider Provider
	// EventOrigins are the origins allowed to open the events websocket.
	EventOrigins []string
}

// NewHandler constructs an identity handler.
func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// RegisterRoutes attaches public auth routes to rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/logout", h.logout)
	rg.POST("/auth/refresh", h.refresh)
	rg.POST("/auth/resend", h.resend)
	rg.GET("/auth/verify", h.verify)
	rg.GET("/auth/session", h.session)
	rg.GET("/auth/events", h.events)
}

// RegisterProtectedRoutes attaches profile routes; rg must run Auth.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.PATCH("/me", h.updateProfile)
	rg.POST("/me/password", h.changePassword)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type stateResponse struct {
	State
	Notifications []notify.Notification `json:"notifications"`
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterForm
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	client, rec := h.newClient()
	if err := client.RegisterForm(c.Request.Context(), req); err != nil {
		writeProviderError(c, err, rec)
		return
	}
	respond.Created(c, stateResponse{State: client.State(), Notifications: rec.All()})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	client, rec := h.newClient()
	if err := client.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		writeProviderError(c, err, rec)
		return
	}
	respond.OK(c, stateResponse{State: client.State(), Notifications: rec.All()})
}

func (h *Handler) logout(c *gin.Context) {
	client, rec, ok := h.startClient(c)
	if !ok {
		return
	}
	_ = client.Logout(c.Request.Context())
	respond.OK(c, stateResponse{State: client.State(), Notifications: rec.All()})
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "refreshToken is required", nil)
		return
	}
	client, rec := h.newClient()
	if err := client.Refresh(c.Request.Context(), req.RefreshToken); err != nil {
		writeProviderError(c, err, rec)
		return
	}
	respond.OK(c, stateResponse{State: client.State(), Notifications: rec.All()})
}

func (h *Handler) resend(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "email is required", nil)
		return
	}
	client, rec := h.newClient()
	if err := client.ResendVerification(c.Request.Context(), req.Email); err != nil {
		writeProviderError(c, err, rec)
		return
	}
	respond.OK(c, gin.H{"notifications": rec.All()})
}

func (h *Handler) verify(c *gin.Context) {
	account, err := h.provider.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		writeProviderError(c, err, nil)
		return
	}
	respond.OK(c, gin.H{"user": DeriveUser(account)})
}

func (h *Handler) session(c *gin.Context) {
	client, _, ok := h.startClient(c)
	if !ok {
		return
	}
	respond.OK(c, client.State())
}

// events streams the caller's session state over a websocket: the current
// state first, then one message per change until the session ends or the
// browser disconnects. Browsers cannot set headers on websocket upgrades, so
// the token may also come from the access_token query parameter.
func (h *Handler) events(c *gin.Context) {
	token, _ := middleware.BearerToken(c)
	if token == "" {
		token = c.Query("access_token")
	}
	client, _ := h.newClient()
	if err := client.Start(c.Request.Context(), token); err != nil {
		writeProviderError(c, err, nil)
		return
	}
	if !client.State().IsAuthenticated {
		respond.Error(c, ErrSessionMissing.Status, ErrSessionMissing.Code, ErrSessionMissing.Message, nil)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.EventOrigins,
	})
	if err != nil {
		telemetry.L().Info("identity.events.accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ctx := conn.CloseRead(c.Request.Context())
	changes := make(chan State, 8)
	stop := client.Watch(ctx, func(st State) {
		select {
		case changes <- st:
		default:
		}
	})
	defer stop()

	if err := wsjson.Write(ctx, conn, client.State()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-changes:
			if err := wsjson.Write(ctx, conn, st); err != nil {
				return
			}
			if !st.IsAuthenticated {
				conn.Close(websocket.StatusNormalClosure, "signed out")
				return
			}
		}
	}
}

func (h *Handler) me(c *gin.Context) {
	client, _, ok := h.startClient(c)
	if !ok {
		return
	}
	st := client.State()
	if !st.IsAuthenticated {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	respond.OK(c, gin.H{"user": st.User})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	client, rec, ok := h.startClient(c)
	if !ok {
		return
	}
	if err := client.UpdateProfile(c.Request.Context(), req); err != nil {
		writeProviderError(c, err, rec)
		return
	}
	st := client.State()
	respond.OK(c, gin.H{"user": st.User, "notifications": rec.All()})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req PasswordForm
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	client, rec, ok := h.startClient(c)
	if !ok {
		return
	}
	if err := client.ChangePassword(c.Request.Context(), req); err != nil {
		writeProviderError(c, err, rec)
		return
	}
	respond.OK(c, gin.H{"notifications": rec.All()})
}

func (h *Handler) newClient() (*Client, *notify.Recorder) {
	rec := &notify.Recorder{}
	return NewClient(h.provider, notify.Multi(rec, notify.Logger{L: telemetry.L()})), rec
}

// startClient builds a client from the request's bearer token. A missing or
// rejected token yields a signed-out client.
func (h *Handler) startClient(c *gin.Context) (*Client, *notify.Recorder, bool) {
	client, rec := h.newClient()
	token := middleware.AccessTokenFromContext(c)
	if token == "" {
		token, _ = middleware.BearerToken(c)
	}
	if err := client.Start(c.Request.Context(), token); err != nil {
		writeProviderError(c, err, rec)
		return nil, nil, false
	}
	return client, rec, true
}

// writeProviderError maps provider and validation errors to the standard
// error body, carrying any notifications raised on the way.
func writeProviderError(c *gin.Context, err error, rec *notify.Recorder) {
	var details interface{}
	if rec != nil {
		details = gin.H{"notifications": rec.All()}
	}
	if perr, ok := AsError(err); ok {
		respond.Error(c, perr.Status, perr.Code, perr.Message, details)
		return
	}
	if errors.Is(err, context.Canceled) {
		respond.Error(c, 499, "client_closed_request", "request cancelled", details)
		return
	}
	telemetry.L().Error("identity.request_failed", zap.Error(err))
	respond.Error(c, http.StatusInternalServerError, "internal_error", "authentication service unavailable", details)
}
