package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/publidesk/passerelle/internal/backend"
	"github.com/publidesk/passerelle/internal/credential"
)

const sessionIDKey = "__session_id__"

// SessionMiddleware guarantees every request carries an opaque session cookie,
// minting one when absent. The cookie identifies the credential slot; it never
// contains the credential itself.
func (s *Server) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(s.cfg.Session.CookieName)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(s.cfg.Session.CookieName, sessionID, int(s.cfg.SessionTTL().Seconds()), "/", "", s.cfg.Session.CookieSecure, true)
		}
		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// SessionID returns the request's session identifier.
func SessionID(c *gin.Context) string {
	if v, ok := c.Get(sessionIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RequireAuth gates page routes on a valid credential: requests without one
// are sent to the login page.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := s.gateway.Credential(c.Request.Context(), SessionID(c))
		if err != nil || cred == nil || !cred.Valid() {
			c.Redirect(http.StatusSeeOther, s.cfg.Routes.Login)
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentCredential loads the session credential, nil when absent or invalid.
func (s *Server) currentCredential(c *gin.Context) *credential.Credential {
	cred, err := s.gateway.Credential(c.Request.Context(), SessionID(c))
	if err != nil || cred == nil || !cred.Valid() {
		return nil
	}
	return cred
}

// respondError maps gateway errors onto HTTP answers. A session expiry always
// tells the client where to go; it is decided here once, not per handler.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, backend.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":   "error",
			"error":    "session_expired",
			"redirect": s.cfg.Routes.Login + "?error=session_expired",
		})
	case errors.Is(err, backend.ErrUnreachable):
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": "network_error"})
	default:
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			c.Data(statusErr.StatusCode, "application/json", statusErr.Body)
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "server_error"})
	}
}
