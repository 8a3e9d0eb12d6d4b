// Package main provides the entry point for the Passerelle gateway server.
// The gateway fronts the publication backend for browser clients: it owns the
// session cookie, drives the OAuth connection flows against the social
// platforms and attaches the bearer credential to every proxied backend call.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/publidesk/passerelle/internal/api"
	"github.com/publidesk/passerelle/internal/audit"
	"github.com/publidesk/passerelle/internal/backend"
	"github.com/publidesk/passerelle/internal/buildinfo"
	"github.com/publidesk/passerelle/internal/config"
	"github.com/publidesk/passerelle/internal/connections"
	"github.com/publidesk/passerelle/internal/credential"
	"github.com/publidesk/passerelle/internal/logging"
	"github.com/publidesk/passerelle/internal/oauth"
	"github.com/publidesk/passerelle/internal/watcher"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("Passerelle Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Configure File Path")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir, cfg.Debug); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildCredentialStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build credential store: %v", err)
	}
	defer closeStore()

	recorder, closeRecorder, err := buildAuditRecorder(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build audit recorder: %v", err)
	}
	defer closeRecorder()

	gateway := backend.NewClient(cfg.Backend.BaseURL, cfg.BackendTimeout(), store)
	oauthSvc := oauth.NewService(cfg, gateway, recorder)
	connMgr := connections.NewManager(gateway, recorder, cfg.ConnectionsCacheTTL())
	server := api.NewServer(cfg, gateway, oauthSvc, connMgr, recorder)

	configWatcher, err := watcher.NewWatcher(configPath, func(newCfg *config.Config) {
		oauthSvc.Reload(newCfg)
	})
	if err != nil {
		log.Fatalf("failed to create config watcher: %v", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infof("gateway listening on %s, backend %s", cfg.Addr, cfg.Backend.BaseURL)
		return server.Run(groupCtx)
	})
	group.Go(func() error {
		defer func() { _ = configWatcher.Stop() }()
		return configWatcher.Start(groupCtx)
	})

	if err = group.Wait(); err != nil {
		log.Errorf("gateway stopped: %v", err)
		os.Exit(1)
	}
	log.Info("gateway stopped")
}

func buildCredentialStore(ctx context.Context, cfg *config.Config) (credential.Store, func(), error) {
	switch cfg.Session.Store {
	case "redis":
		store, err := credential.NewRedisStore(ctx, cfg.Session.Redis.Addr, cfg.Session.Redis.Password, cfg.Session.Redis.DB, cfg.SessionTTL())
		if err != nil {
			return nil, nil, err
		}
		log.Infof("using redis credential store at %s", cfg.Session.Redis.Addr)
		return store, func() { _ = store.Close() }, nil
	case "memory", "":
		return credential.NewMemoryStore(cfg.SessionTTL()), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

func buildAuditRecorder(ctx context.Context, cfg *config.Config) (audit.Recorder, func(), error) {
	if !cfg.Audit.Enabled {
		return audit.NopRecorder{}, func() {}, nil
	}
	recorder, err := audit.NewPostgresRecorder(ctx, cfg.Audit.DSN, cfg.Audit.Table)
	if err != nil {
		return nil, nil, err
	}
	log.Info("oauth audit trail enabled")
	return recorder, func() { _ = recorder.Close() }, nil
}
