// Package web serves the inventory over HTTP: server-rendered pages with
// datastar live updates, a small JSON API, and Prometheus metrics.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/store"
	"stockroom-cli/internal/view"
)

//go:embed templates/*.html
var assetsFS embed.FS

type ServerConfig struct {
	Addr string
	Dir  string
	// Locale is the collation language for the sorted listing.
	Locale      string
	SessionTTL  time.Duration
	SettleDelay time.Duration
}

// Options carries the collaborators. Provider defaults to auth.NoneProvider;
// Signer is loaded from Dir when a gated provider is used without one.
type Options struct {
	Provider auth.Provider
	Signer   *auth.Signer
	Logger   *zap.Logger
}

type Server struct {
	cfg      ServerConfig
	tmpl     *template.Template
	inv      *inventory.Service
	events   store.EventLog
	provider auth.Provider
	signer   *auth.Signer
	hub      *resourceHub
	metrics  *metrics
	log      *zap.Logger
}

type baseVM struct {
	Now       string
	AuthMode  string
	User      *model.User
	StreamURL string
}

func (s *Server) baseVMForRequest(r *http.Request, streamURL string) baseVM {
	vm := baseVM{
		Now:       time.Now().Format(time.RFC3339),
		AuthMode:  s.provider.Name(),
		StreamURL: streamURL,
	}
	if u, ok := s.userFromRequest(r); ok {
		vm.User = &u
	}
	return vm
}

func NewServer(cfg ServerConfig, inv *inventory.Service, opts Options) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Dir = strings.TrimSpace(cfg.Dir)
	if cfg.Dir == "" {
		return nil, errors.New("web: dir is empty")
	}
	if inv == nil {
		return nil, errors.New("web: inventory service is nil")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = auth.DefaultSettleDelay
	}

	provider := opts.Provider
	if provider == nil {
		provider = auth.NoneProvider{}
	}
	signer := opts.Signer
	if signer == nil && provider.Name() != auth.ModeNone {
		secret, err := auth.LoadOrInitSecretKey(cfg.Dir)
		if err != nil {
			return nil, err
		}
		signer = auth.NewSigner(secret)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim":        strings.TrimSpace,
		"displayName": view.DisplayName,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		tmpl:     tmpl,
		inv:      inv,
		events:   store.EventLog{Dir: cfg.Dir},
		provider: provider,
		signer:   signer,
		hub:      newResourceHub(),
		metrics:  newMetrics(),
		log:      log,
	}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())
	mux.HandleFunc("GET /events", s.handleInventoryEvents)
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /about", s.handleAbout)
	mux.HandleFunc("GET /login", s.handleLoginGet)
	mux.HandleFunc("POST /login", s.handleLoginPost)
	mux.HandleFunc("POST /logout", s.handleLogoutPost)
	mux.HandleFunc("GET /oauth/start", s.handleOAuthStart)
	mux.HandleFunc("GET /oauth/callback", s.handleOAuthCallback)
	mux.HandleFunc("POST /items", s.handleItemAdd)
	mux.HandleFunc("POST /items/{name}/increment", s.handleItemIncrement)
	mux.HandleFunc("POST /items/{name}/decrement", s.handleItemDecrement)
	mux.HandleFunc("POST /items/{name}/edit", s.handleItemEdit)
	mux.HandleFunc("GET /api/items", s.handleAPIList)
	mux.HandleFunc("POST /api/items", s.handleAPIAdd)
	mux.HandleFunc("POST /api/items/{name}/increment", s.handleAPIIncrement)
	mux.HandleFunc("POST /api/items/{name}/decrement", s.handleAPIDecrement)
	mux.HandleFunc("PUT /api/items/{name}", s.handleAPIRename)
	return s.instrument(mux)
}

// Serve runs the HTTP server on ln and the event log watcher until ctx is
// cancelled, then shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return newEventLogWatcher(s.events.Path(), s.hub, s.log).run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	s.log.Info("web server listening", zap.String("addr", ln.Addr().String()))
	return g.Wait()
}

// changed is called after every successful in-process mutation.
func (s *Server) changed(res inventory.Result) {
	s.metrics.observeMutation(res)
	s.hub.broadcast()
}

// actorContext attributes mutations to the signed-in user, if any.
func (s *Server) actorContext(r *http.Request) context.Context {
	if u, ok := s.userFromRequest(r); ok {
		return inventory.WithActor(r.Context(), u.ID)
	}
	return r.Context()
}

func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	ref := strings.TrimSpace(r.Header.Get("Referer"))
	if ref != "" {
		http.Redirect(w, r, ref, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	s.writeHTMLTemplateStatus(w, http.StatusOK, name, data)
}

func (s *Server) writeHTMLTemplateStatus(w http.ResponseWriter, status int, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, html)
}
