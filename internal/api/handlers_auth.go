package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/publidesk/passerelle/internal/audit"
	"github.com/publidesk/passerelle/internal/oauth"
)

// LoginPage renders the login entry. When the query carries a callback
// outcome, the matching banner is shown above the form.
func (s *Server) LoginPage(c *gin.Context) {
	var banner string
	if category := c.Query("error"); category != "" {
		details := c.Query("details")
		switch category {
		case "session_expired":
			banner = oauth.Messages("").Lookup(oauth.CodeSessionExpired)
		default:
			if details == "" {
				details = category
			}
			banner = oauth.Messages("").Lookup(details)
		}
	}

	providers := make([]string, 0, len(s.cfg.Providers))
	for i := range s.cfg.Providers {
		providers = append(providers, strings.ToLower(s.cfg.Providers[i].Name))
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = loginPageTmpl.Execute(c.Writer, loginPage{Banner: banner, Providers: providers})
}

// LandingPage renders the authenticated landing stub.
func (s *Server) LandingPage(c *gin.Context) {
	cred := s.currentCredential(c)
	if cred == nil {
		c.Redirect(http.StatusSeeOther, s.cfg.Routes.Login)
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = landingPageTmpl.Execute(c.Writer, landingPage{Name: cred.User.Name, Email: cred.User.Email})
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// PostLogin forwards password authentication to the backend and stores the
// derived credential under the browser session.
func (s *Server) PostLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	cred, err := s.gateway.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err = s.gateway.StoreCredential(ctx, SessionID(c), cred); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "user": cred.User, "redirect": s.cfg.Routes.Landing})
}

type registerRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
}

// PostRegister forwards account creation to the backend; when the backend
// answers with a token the user is logged in immediately.
func (s *Server) PostRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	cred, err := s.gateway.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err = s.gateway.StoreCredential(ctx, SessionID(c), cred); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok", "user": cred.User, "redirect": s.cfg.Routes.Landing})
}

// PostLogout destroys the session credential and tells the backend.
func (s *Server) PostLogout(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.gateway.Logout(ctx, SessionID(c)); err != nil {
		s.respondError(c, err)
		return
	}
	s.audit.Record(ctx, audit.Event{
		SessionID: SessionID(c), Action: audit.ActionLogout, Outcome: "ok",
	})
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusSeeOther, s.cfg.Routes.Login)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "redirect": s.cfg.Routes.Login})
}

// GetMe answers with the backend's view of the current user.
func (s *Server) GetMe(c *gin.Context) {
	data, err := s.gateway.Me(c.Request.Context(), SessionID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
