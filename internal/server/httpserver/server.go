// Package httpserver wires the three HTTP surfaces: the docs server that
// serves published artifacts, the webhook server that accepts provider
// push notifications, and the admin server exposing health, metrics, and
// build inspection.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docshost/internal/build"
	"git.home.luguber.info/inful/docshost/internal/config"
	"git.home.luguber.info/inful/docshost/internal/perm"
	"git.home.luguber.info/inful/docshost/internal/pipeline"
	"git.home.luguber.info/inful/docshost/internal/registry"
	"git.home.luguber.info/inful/docshost/internal/servecache"
	smw "git.home.luguber.info/inful/docshost/internal/server/middleware"
	"git.home.luguber.info/inful/docshost/internal/tenant"
)

// Deps are the collaborators the HTTP surfaces serve from.
type Deps struct {
	Resolver     *tenant.Resolver
	Permissions  *perm.Engine
	Cache        *servecache.Cache
	Builds       *build.Store
	Registry     *registry.Store
	Orchestrator *pipeline.Orchestrator
	Metrics      *prom.Registry // nil disables /metrics
}

// Server manages the docs, webhook, and admin HTTP servers.
type Server struct {
	cfg  *config.HTTPConfig
	deps Deps

	docs    *http.Server
	webhook *http.Server
	admin   *http.Server

	chain func(http.Handler) http.Handler
}

// New constructs the server wiring.
func New(cfg *config.HTTPConfig, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps, chain: smw.Chain(slog.Default())}
}

// Start binds all three ports and begins serving. All ports are bound
// before any server starts so a conflict fails fast as one aggregate
// error.
func (s *Server) Start(ctx context.Context) error {
	binds := []struct {
		name string
		port int
		ln   net.Listener
	}{
		{name: "docs", port: s.cfg.DocsPort},
		{name: "webhook", port: s.cfg.WebhookPort},
		{name: "admin", port: s.cfg.AdminPort},
	}

	var bindErrs []error
	lc := net.ListenConfig{}
	for i := range binds {
		ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", binds[i].port))
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", binds[i].name, binds[i].port, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return fmt.Errorf("http startup failed: %w", errors.Join(bindErrs...))
	}

	s.docs = s.serveOn(binds[0].ln, s.docsHandler())
	s.webhook = s.serveOn(binds[1].ln, s.webhookHandler())
	s.admin = s.serveOn(binds[2].ln, s.adminHandler())

	slog.Info("HTTP servers started",
		slog.Int("docs_port", s.cfg.DocsPort),
		slog.Int("webhook_port", s.cfg.WebhookPort),
		slog.Int("admin_port", s.cfg.AdminPort))
	return nil
}

func (s *Server) serveOn(ln net.Listener, h http.Handler) *http.Server {
	srv := &http.Server{
		Handler:           s.chain(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server exited", slog.String("error", err.Error()))
		}
	}()
	return srv
}

// Stop shuts the servers down gracefully, admin last so health stays
// observable during drain.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	for _, srv := range []*http.Server{s.docs, s.webhook, s.admin} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
