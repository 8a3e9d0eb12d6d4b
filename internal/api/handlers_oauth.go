package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/publidesk/passerelle/internal/oauth"
)

// OAuthStart begins a provider authorization and sends the browser there.
func (s *Server) OAuthStart(c *gin.Context) {
	provider := c.Param("provider")
	redirectURL, err := s.oauth.BeginAuthorization(c.Request.Context(), provider, SessionID(c), s.cfg.Routes.Login)
	if err != nil {
		c.Redirect(http.StatusSeeOther, s.cfg.Routes.Login+"?error=provider_error&details="+oauth.CodeNetworkError)
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

// OAuthCallback terminates a provider flow. Success navigates straight to the
// landing page once the credential is stored; failures render the outcome
// page which redirects back to login after the provider's display delay.
func (s *Server) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	outcome := s.oauth.HandleCallback(c.Request.Context(), provider, SessionID(c), c.Request.URL.Query())

	if !outcome.Failed() {
		// The store write already completed inside HandleCallback.
		c.Redirect(http.StatusSeeOther, s.cfg.Routes.Landing)
		return
	}

	delay := int(outcome.Delay.Seconds())
	if delay < 1 {
		delay = 1
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = failurePageTmpl.Execute(c.Writer, failurePage{
		Message:      outcome.Message,
		DelaySeconds: delay,
		RedirectURL:  s.cfg.Routes.Login + "?" + outcome.RedirectQuery(),
	})
}
