package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SvBorde/ResumeBooster/internal/api/middleware"
	"github.com/SvBorde/ResumeBooster/internal/auth"
	"github.com/SvBorde/ResumeBooster/internal/database"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateMaxAge     = 600
	googleCallbackPath   = "/google_login/callback"
)

// GoogleAuthHandler serves the federated login flow. Any failure past the
// specific cases below is surfaced as a generic 500; detail stays in the log.
type GoogleAuthHandler struct {
	db           *gorm.DB
	provider     *auth.GoogleProvider
	sessions     auth.SessionStore
	logger       *slog.Logger
	cookieDomain string
}

// NewGoogleAuthHandler constructs the federated identity handler.
func NewGoogleAuthHandler(db *gorm.DB, provider *auth.GoogleProvider, sessions auth.SessionStore, logger *slog.Logger, cookieDomain string) *GoogleAuthHandler {
	return &GoogleAuthHandler{
		db:           db,
		provider:     provider,
		sessions:     sessions,
		logger:       logger,
		cookieDomain: cookieDomain,
	}
}

// redirectURI rebuilds the callback URL for this deployment. The scheme is
// forced to https to match the URI whitelisted with the provider.
func (h *GoogleAuthHandler) redirectURI(c *gin.Context) string {
	return "https://" + c.Request.Host + googleCallbackPath
}

// Login redirects the browser to the provider's authorization endpoint.
func (h *GoogleAuthHandler) Login(c *gin.Context) {
	logger := loggerFromContext(c, h.logger)

	state := uuid.NewString()
	authURL, err := h.provider.AuthCodeURL(c.Request.Context(), h.redirectURI(c), state)
	if err != nil {
		logger.Error("build authorization url failed", slog.Any("error", err))
		Internal(c, "authentication failed")
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		MaxAge:   oauthStateMaxAge,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the authorization-code exchange, maps the verified
// identity to a local user (creating one on first login), and starts a
// session.
func (h *GoogleAuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	logger := loggerFromContext(c, h.logger)

	code := c.Query("code")
	if code == "" {
		BadRequest(c, "missing authorization code")
		return
	}

	state, err := c.Cookie(oauthStateCookieName)
	if err != nil || state == "" || state != c.Query("state") {
		BadRequest(c, "invalid oauth state")
		return
	}

	googleUser, err := h.provider.Exchange(ctx, code, h.redirectURI(c))
	if err != nil {
		if errors.Is(err, auth.ErrEmailNotVerified) {
			logger.Info("federated login rejected: email not verified")
			BadRequest(c, "user email not available or not verified by Google")
			return
		}
		logger.Error("federated code exchange failed", slog.Any("error", err))
		Internal(c, "authentication failed")
		return
	}

	user, err := h.findOrCreateUser(c, googleUser)
	if err != nil {
		logger.Error("federated user lookup failed", slog.Any("error", err))
		Internal(c, "authentication failed")
		return
	}

	token, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		logger.Error("create session failed", slog.Any("error", err))
		Internal(c, "authentication failed")
		return
	}

	setSessionCookie(c, token, h.sessions.TTL(), h.cookieDomain)
	logger.Info("federated login completed", slog.Uint64("user_id", uint64(user.ID)))
	c.Redirect(http.StatusFound, "/")
}

// Logout tears down the session and sends the browser home.
func (h *GoogleAuthHandler) Logout(c *gin.Context) {
	token := middleware.SessionTokenFromContext(c)
	if token == "" {
		AbortUnauthorized(c)
		return
	}

	if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
		loggerFromContext(c, h.logger).Error("destroy session failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	clearSessionCookie(c, h.cookieDomain)
	c.Redirect(http.StatusFound, "/")
}

// findOrCreateUser maps the verified federated email to a local account.
// First-time federated users get no password hash; they can only log in
// through the provider until they register locally.
func (h *GoogleAuthHandler) findOrCreateUser(c *gin.Context, googleUser *auth.GoogleUser) (*database.User, error) {
	ctx := c.Request.Context()

	var user database.User
	err := h.db.WithContext(ctx).Where("email = ?", googleUser.Email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = database.User{
		Username: googleUser.FallbackUsername(),
		Email:    googleUser.Email,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
