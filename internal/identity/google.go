package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"docvault-api/internal/shared/server/respond"
	"docvault-api/internal/shared/telemetry"
)

const (
	oauthStateTTL     = 5 * time.Minute
	maxPendingStates  = 4096
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// OAuthSigner signs in an externally verified identity.
type OAuthSigner interface {
	SignInWithOAuth(ctx context.Context, id OAuthIdentity) (Session, error)
}

// GoogleSignIn handles the Google OAuth redirect flow.
type GoogleSignIn struct {
	oauthConfig *oauth2.Config
	uiRedirect  string
	signer      OAuthSigner
	states      *expirable.LRU[string, struct{}]
	userInfo    func(ctx context.Context, token *oauth2.Token) (googleUserInfo, error)
}

// NewGoogleSignIn builds a GoogleSignIn.
func NewGoogleSignIn(clientID, clientSecret, redirectURL, uiRedirect string, signer OAuthSigner) *GoogleSignIn {
	g := &GoogleSignIn{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		uiRedirect: uiRedirect,
		signer:     signer,
		states:     expirable.NewLRU[string, struct{}](maxPendingStates, nil, oauthStateTTL),
	}
	g.userInfo = g.fetchUserInfo
	return g
}

// RegisterRoutes attaches Google auth routes.
func (g *GoogleSignIn) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", g.start)
	rg.GET("/auth/google/callback", g.callback)
}

func (g *GoogleSignIn) configured() bool {
	return g.oauthConfig.ClientID != "" && g.oauthConfig.ClientSecret != "" && g.oauthConfig.RedirectURL != ""
}

func (g *GoogleSignIn) start(c *gin.Context) {
	if !g.configured() {
		respond.Error(c, ErrOAuthNotConfigured.Status, ErrOAuthNotConfigured.Code, ErrOAuthNotConfigured.Message, nil)
		return
	}
	state := uuid.NewString()
	g.states.Add(state, struct{}{})
	c.Redirect(http.StatusFound, g.oauthConfig.AuthCodeURL(state))
}

func (g *GoogleSignIn) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	if !g.consumeState(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}
	info, err := g.userInfo(ctx, token)
	if err != nil || info.Sub == "" {
		telemetry.L().Warn("identity.google.userinfo_failed", zap.Error(err))
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}

	session, err := g.signer.SignInWithOAuth(ctx, OAuthIdentity{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	})
	if err != nil {
		writeProviderError(c, err, nil)
		return
	}

	redirectURL, err := appendSession(g.uiRedirect, session)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

func (g *GoogleSignIn) consumeState(state string) bool {
	_, ok := g.states.Get(state)
	if ok {
		g.states.Remove(state)
	}
	return ok
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *GoogleSignIn) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := g.oauthConfig.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}
	// The v2 endpoint reports the subject as "id".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	return info, nil
}

// appendSession puts the session tokens in the redirect URL fragment so they
// stay out of server logs.
func appendSession(rawURL string, session Session) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	frag := url.Values{}
	frag.Set("access_token", session.AccessToken)
	frag.Set("refresh_token", session.RefreshToken)
	frag.Set("expires_at", fmt.Sprintf("%d", session.ExpiresAt.Unix()))
	u.Fragment = frag.Encode()
	return u.String(), nil
}
