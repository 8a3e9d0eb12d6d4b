// Package api assembles the gateway's HTTP surface: session handling, the
// OAuth lifecycle routes, the connection management API and the pass-through
// routes for the admin CRUD screens.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/publidesk/passerelle/internal/audit"
	"github.com/publidesk/passerelle/internal/backend"
	"github.com/publidesk/passerelle/internal/config"
	"github.com/publidesk/passerelle/internal/connections"
	"github.com/publidesk/passerelle/internal/logging"
	"github.com/publidesk/passerelle/internal/oauth"
)

// Server wires handlers, middleware and the underlying services together.
type Server struct {
	cfg         *config.Config
	gateway     *backend.Client
	oauth       *oauth.Service
	connections *connections.Manager
	audit       audit.Recorder
	engine      *gin.Engine
	httpServer  *http.Server
}

// NewServer builds the gin engine and registers all routes.
func NewServer(cfg *config.Config, gateway *backend.Client, oauthSvc *oauth.Service, connMgr *connections.Manager, recorder audit.Recorder) *Server {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:         cfg,
		gateway:     gateway,
		oauth:       oauthSvc,
		connections: connMgr,
		audit:       recorder,
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.Use(s.SessionMiddleware())
	s.registerRoutes(engine)
	s.engine = engine
	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET(s.cfg.Routes.Login, s.LoginPage)
	engine.GET(s.cfg.Routes.Landing, s.RequireAuth(), s.LandingPage)
	engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, s.cfg.Routes.Landing)
	})

	auth := engine.Group("/auth")
	{
		auth.POST("/login", s.PostLogin)
		auth.POST("/register", s.PostRegister)
		auth.POST("/logout", s.PostLogout)
		auth.GET("/me", s.GetMe)
	}

	oauthGroup := engine.Group("/oauth")
	{
		oauthGroup.GET("/:provider/start", s.OAuthStart)
		oauthGroup.GET("/:provider/callback", s.OAuthCallback)
	}

	api := engine.Group("/api")
	{
		api.GET("/connexions", s.ListConnections)
		api.DELETE("/connexions/:id", s.DisconnectConnection)
		api.POST("/connexions/:id/refresh", s.RefreshConnection)
		api.PUT("/connexions/:id/meta", s.UpdateConnectionMeta)
		api.GET("/connexions/:id/validite", s.CheckConnectionValidity)

		// Admin CRUD pass-through; the backend owns the semantics.
		for _, path := range []string{"/contenu", "/projets", "/prompts", "/templates", "/modelIA", "/generer", "/publications"} {
			api.Any(path, s.Proxy)
			api.Any(path+"/*rest", s.Proxy)
		}
	}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until the context is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
