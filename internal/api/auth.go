package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/atelierhq/atelier/internal/accounts"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/identity"
)

// GoogleOAuthConfig holds OAuth client credentials for Google sign-in.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// AuthHandler handles registration, login, and account recovery routes.
type AuthHandler struct {
	accounts    *accounts.Service
	tokens      *identity.TokenIssuer
	auditor     audit.Recorder
	oauthCfg    *oauth2.Config
	frontendURL string // used to redirect after the OAuth callback
	logger      *zap.Logger
}

// NewAuthHandler creates an AuthHandler. oauthCfg may be zero to disable
// Google sign-in routes.
func NewAuthHandler(
	accountSvc *accounts.Service,
	tokens *identity.TokenIssuer,
	auditor audit.Recorder,
	oauthCfg GoogleOAuthConfig,
	logger *zap.Logger,
) *AuthHandler {
	h := &AuthHandler{
		accounts:    accountSvc,
		tokens:      tokens,
		auditor:     auditor,
		frontendURL: "http://localhost:3000",
		logger:      logger,
	}
	if oauthCfg.ClientID != "" && oauthCfg.ClientSecret != "" {
		h.oauthCfg = &oauth2.Config{
			ClientID:     oauthCfg.ClientID,
			ClientSecret: oauthCfg.ClientSecret,
			RedirectURL:  oauthCfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return h
}

// SetFrontendURL sets the base URL the OAuth callback redirects to.
func (h *AuthHandler) SetFrontendURL(url string) {
	h.frontendURL = url
}

// Register mounts the auth routes. gate protects the routes that need a
// resolved account.
func (h *AuthHandler) Register(rg *gin.RouterGroup, gate gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.SignUp)
		auth.POST("/login", h.Login)
		auth.GET("/security-question/:username", h.SecurityQuestion)
		auth.POST("/reset-password", h.ResetPassword)
		auth.GET("/google", h.GoogleRedirect)
		auth.GET("/google/callback", h.GoogleCallback)
		auth.GET("/me", gate, h.Me)
		auth.PATCH("/phone", gate, h.UpdatePhone)
		auth.POST("/enroll", gate, h.Enroll)
	}
}

// ─── Request types ───────────────────────────────────────────────────────────

type registerRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	SecurityQuestion string `json:"securityQuestion"`
	SecurityAnswer   string `json:"securityAnswer"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type resetPasswordRequest struct {
	Username       string `json:"username"    binding:"required"`
	SecurityAnswer string `json:"securityAnswer" binding:"required"`
	NewPassword    string `json:"newPassword" binding:"required"`
}

type updatePhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type enrollRequest struct {
	Phone           string   `json:"phone"`
	ExperienceLevel string   `json:"experienceLevel"`
	Interests       []string `json:"interests"`
	Message         string   `json:"message"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// SignUp handles POST /auth/register — creates a pending student account.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.accounts.Register(c.Request.Context(), accounts.RegisterInput{
		Username:         req.Username,
		Password:         req.Password,
		Email:            req.Email,
		Name:             req.Name,
		Phone:            req.Phone,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrDuplicateUsername):
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already exists"})
		case errors.Is(err, accounts.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already exists"})
		case errors.Is(err, accounts.ErrMissingFields), errors.Is(err, accounts.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("register", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	tok, err := h.tokens.Issue(acct.ID, string(acct.Role), acct.Username)
	if err != nil {
		h.logger.Error("issue token after register", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:   &acct.ID,
		Action:    "account.registered",
		Details:   acct.Username,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"token":   tok,
		"account": acct,
		"note":    "Your account is pending approval. You can browse once an admin activates it.",
	})
}

// Login handles POST /auth/login — authenticates with username/password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RecordLogin("student", false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	RecordLogin("student", true)

	tok, err := h.tokens.Issue(acct.ID, string(acct.Role), acct.Username)
	if err != nil {
		h.logger.Error("issue token after login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tok, "account": acct})
}

// SecurityQuestion handles GET /auth/security-question/:username.
// A 404 reveals that the username does not exist; the recovery flow
// depends on the question lookup, so the leak is accepted.
func (h *AuthHandler) SecurityQuestion(c *gin.Context) {
	question, err := h.accounts.SecurityQuestion(c.Request.Context(), c.Param("username"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"securityQuestion": question})
}

// ResetPassword handles POST /auth/reset-password — verifies the security
// answer and replaces the password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.accounts.ResetPassword(c.Request.Context(), req.Username, req.SecurityAnswer, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "password updated — please log in with your new password"})
	case errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	case errors.Is(err, accounts.ErrWrongSecurityAnswer):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect security answer"})
	default:
		h.logger.Error("reset password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password reset failed"})
	}
}

// Me handles GET /auth/me — returns the account resolved by the gate.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"account": identity.AccountFromCtx(c)})
}

// UpdatePhone handles PATCH /auth/phone.
func (h *AuthHandler) UpdatePhone(c *gin.Context) {
	var req updatePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct := identity.AccountFromCtx(c)
	if err := h.accounts.UpdatePhone(c.Request.Context(), acct.ID, req.Phone); err != nil {
		h.logger.Error("update phone", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "phone updated"})
}

// Enroll handles POST /auth/enroll — completes the profile on an existing
// account (experience level, interests, contact phone).
func (h *AuthHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct := identity.AccountFromCtx(c)
	err := h.accounts.CompleteEnrollment(c.Request.Context(), acct.ID, req.Phone, accounts.Profile{
		ExperienceLevel: accounts.ExperienceLevel(req.ExperienceLevel),
		Interests:       req.Interests,
		Message:         req.Message,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("complete enrollment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enrollment failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "enrollment details saved"})
}

// GoogleRedirect handles GET /auth/google — redirects to Google's consent page.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	if h.oauthCfg == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Google sign-in not configured"})
		return
	}

	state, err := h.tokens.IssueOAuthState()
	if err != nil {
		h.logger.Error("generate oauth state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate OAuth state"})
		return
	}
	c.Redirect(http.StatusFound, h.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GoogleCallback handles GET /auth/google/callback.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.oauthCfg == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Google sign-in not configured"})
		return
	}

	// Validate state to prevent CSRF.
	if err := h.tokens.VerifyOAuthState(c.Query("state")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid OAuth state"})
		return
	}

	code := c.Query("code")
	if code == "" {
		errMsg := c.Query("error_description")
		if errMsg == "" {
			errMsg = c.Query("error")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "OAuth authorization failed: " + errMsg})
		return
	}

	oauthToken, err := h.oauthCfg.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("oauth code exchange", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "OAuth code exchange failed"})
		return
	}

	googleID, email, name, err := fetchGoogleUserInfo(c.Request.Context(), oauthToken.AccessToken)
	if err != nil {
		h.logger.Error("fetch google user info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user info from Google"})
		return
	}

	acct, created, err := h.accounts.GetOrCreateFromGoogle(c.Request.Context(), googleID, email, name)
	if err != nil {
		h.logger.Error("get or create google account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process Google login"})
		return
	}
	if created {
		h.auditor.Record(c.Request.Context(), audit.Entry{
			ActorID:   &acct.ID,
			Action:    "account.registered.google",
			Details:   acct.Username,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}

	tok, err := h.tokens.Issue(acct.ID, string(acct.Role), acct.Username)
	if err != nil {
		h.logger.Error("issue token after oauth", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	// The token travels in the URL fragment so it never reaches the server.
	c.Redirect(http.StatusFound, h.frontendURL+"/oauth/callback#token="+tok)
}

// ─── Google user-info helper ─────────────────────────────────────────────────

func fetchGoogleUserInfo(ctx context.Context, accessToken string) (id, email, name string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return "", "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", "", fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", "", "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", "", "", fmt.Errorf("google userinfo returned %d: %s", resp.StatusCode, body)
	}

	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", "", "", fmt.Errorf("parse google user info: %w", err)
	}
	return info.ID, info.Email, info.Name, nil
}
