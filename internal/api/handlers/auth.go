package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/auth"
)

// SessionManager is the session behaviour the login endpoints need.
type SessionManager interface {
	SetOperator(r *http.Request, w http.ResponseWriter, op *auth.SessionOperator) (string, error)
	GetOperator(r *http.Request) (*auth.SessionOperator, error)
	ClearOperator(r *http.Request, w http.ResponseWriter) error
	CSRFToken(r *http.Request, w http.ResponseWriter) (string, error)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionInfo describes the logged-in operator.
type SessionInfo struct {
	Username        string    `json:"username"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	CSRFToken       string    `json:"csrf_token,omitempty"`
}

// AuthHandler handles operator login for the web path.
type AuthHandler struct {
	sessions SessionManager
	operator *auth.Operator
	now      func() time.Time
	logger   zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions SessionManager, operator *auth.Operator, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		operator: operator,
		now:      time.Now,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers auth routes on the given router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/me", h.Me)
	r.GET("/csrf", h.CSRF)
}

// Login verifies the operator credential and starts a session.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("username and password are required"))
		return
	}

	if !h.operator.Verify(req.Username, req.Password) {
		h.logger.Warn().Str("client_ip", c.ClientIP()).Msg("operator login failed")
		respondError(c, apperr.InvalidCredential())
		return
	}

	op := &auth.SessionOperator{Username: h.operator.Username, AuthenticatedAt: h.now().UTC()}
	token, err := h.sessions.SetOperator(c.Request, c.Writer, op)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to save session")
		respondError(c, err)
		return
	}

	h.logger.Info().Str("username", op.Username).Str("client_ip", c.ClientIP()).Msg("operator logged in")
	respond(c, http.StatusOK, SessionInfo{
		Username:        op.Username,
		AuthenticatedAt: op.AuthenticatedAt,
		CSRFToken:       token,
	})
}

// Logout ends the session.
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.ClearOperator(c.Request, c.Writer); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear session")
		respondError(c, err)
		return
	}
	respondMessage(c, "logged out")
}

// Me returns the logged-in operator.
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	op, err := h.sessions.GetOperator(c.Request)
	if err != nil {
		respondError(c, apperr.MissingCredential())
		return
	}
	respond(c, http.StatusOK, SessionInfo{Username: op.Username, AuthenticatedAt: op.AuthenticatedAt})
}

// CSRF returns the session's CSRF token.
// GET /auth/csrf
func (h *AuthHandler) CSRF(c *gin.Context) {
	if _, err := h.sessions.GetOperator(c.Request); err != nil {
		respondError(c, apperr.MissingCredential())
		return
	}
	token, err := h.sessions.CSRFToken(c.Request, c.Writer)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"csrf_token": token})
}
