package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

func init() {
	gob.Register(time.Time{})
}

const (
	// SessionName is the name of the session cookie.
	SessionName = "orgtree_session"
	// OperatorKey is the session key for the logged-in operator username.
	OperatorKey = "operator"
	// AuthenticatedAtKey is the session key for when the operator logged in.
	AuthenticatedAtKey = "authenticated_at"
	// CSRFTokenKey is the session key for the per-session CSRF token.
	CSRFTokenKey = "csrf_token"
)

// ErrNoOperator is returned when the session carries no logged-in operator.
var ErrNoOperator = errors.New("no operator in session")

// SessionConfig holds session store configuration.
type SessionConfig struct {
	Secret     []byte
	MaxAge     int  // seconds
	Secure     bool // require HTTPS
	HTTPOnly   bool // prevent JavaScript access
	SameSite   http.SameSite
	CookiePath string
}

// DefaultSessionConfig returns a SessionConfig with secure defaults.
func DefaultSessionConfig(secret []byte, secure bool) SessionConfig {
	return SessionConfig{
		Secret:     secret,
		MaxAge:     86400, // 24 hours
		Secure:     secure,
		HTTPOnly:   true,
		SameSite:   http.SameSiteLaxMode,
		CookiePath: "/",
	}
}

// SessionStore wraps a gorilla/sessions store with helper methods.
type SessionStore struct {
	store  *sessions.CookieStore
	logger zerolog.Logger
}

// NewSessionStore creates a new session store.
func NewSessionStore(cfg SessionConfig, logger zerolog.Logger) (*SessionStore, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}

	store := sessions.NewCookieStore(cfg.Secret)
	store.Options = &sessions.Options{
		Path:     cfg.CookiePath,
		MaxAge:   cfg.MaxAge,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}

	s := &SessionStore{
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
	}

	s.logger.Info().
		Bool("secure", cfg.Secure).
		Int("max_age", cfg.MaxAge).
		Msg("session store initialized")

	return s, nil
}

// Get retrieves a session from the request.
func (s *SessionStore) Get(r *http.Request) (*sessions.Session, error) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Save saves the session to the response.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SessionOperator is the operator data stored in the session.
type SessionOperator struct {
	Username        string
	AuthenticatedAt time.Time
}

// SetOperator records a successful login and rotates the CSRF token.
func (s *SessionStore) SetOperator(r *http.Request, w http.ResponseWriter, op *SessionOperator) (string, error) {
	session, err := s.Get(r)
	if err != nil {
		return "", err
	}
	token, err := newCSRFToken()
	if err != nil {
		return "", err
	}
	session.Values[OperatorKey] = op.Username
	session.Values[AuthenticatedAtKey] = op.AuthenticatedAt
	session.Values[CSRFTokenKey] = token
	if err := s.Save(r, w, session); err != nil {
		return "", err
	}
	return token, nil
}

// GetOperator retrieves the logged-in operator from the session.
func (s *SessionStore) GetOperator(r *http.Request) (*SessionOperator, error) {
	session, err := s.Get(r)
	if err != nil {
		return nil, err
	}
	username, ok := session.Values[OperatorKey].(string)
	if !ok || username == "" {
		return nil, ErrNoOperator
	}
	authenticatedAt, _ := session.Values[AuthenticatedAtKey].(time.Time)
	return &SessionOperator{Username: username, AuthenticatedAt: authenticatedAt}, nil
}

// ClearOperator removes operator data from the session (logout).
func (s *SessionStore) ClearOperator(r *http.Request, w http.ResponseWriter) error {
	session, err := s.Get(r)
	if err != nil {
		return err
	}
	delete(session.Values, OperatorKey)
	delete(session.Values, AuthenticatedAtKey)
	delete(session.Values, CSRFTokenKey)
	// Set MaxAge to -1 to delete the cookie
	session.Options.MaxAge = -1
	return s.Save(r, w, session)
}

// CSRFToken returns the session's CSRF token, issuing one if needed.
func (s *SessionStore) CSRFToken(r *http.Request, w http.ResponseWriter) (string, error) {
	session, err := s.Get(r)
	if err != nil {
		return "", err
	}
	if token, ok := session.Values[CSRFTokenKey].(string); ok && token != "" {
		return token, nil
	}
	token, err := newCSRFToken()
	if err != nil {
		return "", err
	}
	session.Values[CSRFTokenKey] = token
	if err := s.Save(r, w, session); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyCSRF reports whether presented matches the session's CSRF token.
func (s *SessionStore) VerifyCSRF(r *http.Request, presented string) bool {
	if presented == "" {
		return false
	}
	session, err := s.Get(r)
	if err != nil {
		return false
	}
	token, ok := session.Values[CSRFTokenKey].(string)
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(presented)) == 1
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
