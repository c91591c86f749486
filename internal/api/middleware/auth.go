// Package middleware provides HTTP middleware for the orgtree API.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/auth"
	"github.com/MacJediWizard/orgtree/internal/models"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

// PrincipalContextKey is the gin context key for the authorized caller.
const PrincipalContextKey ContextKey = "principal"

// CSRFHeader carries the session's CSRF token on mutating web requests.
const CSRFHeader = "X-CSRF-Token"

// Authenticator decides whether a presented API key may perform an operation
// needing the given permission.
type Authenticator interface {
	Authenticate(ctx context.Context, presented string, required models.Permission) (*auth.Principal, error)
}

// OperatorSessions is the session behaviour the web path needs.
type OperatorSessions interface {
	GetOperator(r *http.Request) (*auth.SessionOperator, error)
	VerifyCSRF(r *http.Request, presented string) bool
}

// setPrincipal makes p visible to handlers through both the gin context and
// the request context, which is what the service layer reads.
func setPrincipal(c *gin.Context, p *auth.Principal) {
	c.Set(string(PrincipalContextKey), p)
	c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
}

func principalOf(c *gin.Context) (*auth.Principal, bool) {
	v, exists := c.Get(string(PrincipalContextKey))
	if !exists {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil
}

// GetPrincipal retrieves the authorized caller from the Gin context.
// Returns nil if the request was not authenticated.
func GetPrincipal(c *gin.Context) *auth.Principal {
	p, _ := principalOf(c)
	return p
}

// APIKeyFromRequest returns the key presented in header, falling back to an
// Authorization bearer token.
func APIKeyFromRequest(r *http.Request, header string) string {
	if key := r.Header.Get(header); key != "" {
		return key
	}
	return auth.ExtractBearerToken(r.Header.Get("Authorization"))
}

// APIKeyMiddleware returns a Gin middleware that authenticates requests using
// API keys. Safe methods need read permission, everything else read_write.
func APIKeyMiddleware(gate Authenticator, header string, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "apikey_middleware").Logger()

	return func(c *gin.Context) {
		required := auth.RequiredPermission(c.Request.Method)
		presented := APIKeyFromRequest(c.Request, header)

		principal, err := gate.Authenticate(c.Request.Context(), presented, required)
		if err != nil {
			log.Debug().
				Str("path", c.Request.URL.Path).
				Str("code", string(apperr.CodeOf(err))).
				Msg("api key rejected")
			AbortWithError(c, err)
			return
		}

		setPrincipal(c, principal)

		log.Debug().
			Str("api_key_id", principal.ID).
			Str("app_name", principal.Name).
			Str("path", c.Request.URL.Path).
			Msg("authenticated api key request")

		c.Next()
	}
}

// SessionMiddleware returns a Gin middleware that requires a logged-in
// operator session and checks the CSRF token on mutating requests.
func SessionMiddleware(sessions OperatorSessions, operator *auth.Operator, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "session_middleware").Logger()

	return func(c *gin.Context) {
		op, err := sessions.GetOperator(c.Request)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			AbortWithError(c, apperr.MissingCredential())
			return
		}
		// The session outlives a change of the configured operator.
		if operator == nil || op.Username != operator.Username {
			log.Warn().Str("username", op.Username).Msg("session operator no longer configured")
			AbortWithError(c, apperr.InvalidCredential())
			return
		}

		if auth.RequiredPermission(c.Request.Method) == models.PermissionReadWrite &&
			!sessions.VerifyCSRF(c.Request, c.GetHeader(CSRFHeader)) {
			log.Warn().Str("path", c.Request.URL.Path).Msg("csrf token mismatch")
			AbortWithError(c, &apperr.Error{
				Code:    apperr.CodeInsufficientPermission,
				Message: "missing or invalid CSRF token",
			})
			return
		}

		setPrincipal(c, operator.Principal())
		c.Next()
	}
}
