// Package webtui runs the terminal UI in a browser: each WebSocket gets its
// own stockroom subprocess on a server-side PTY, rendered by xterm.js.
package webtui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var assetsFS embed.FS

type ServerConfig struct {
	Addr string
	// Args are passed to every TUI subprocess (persistent flags such as
	// --dir, --config, --store and --actor).
	Args []string
}

// CommandFunc builds the process a terminal session runs.
type CommandFunc func(ctx context.Context, args []string) (*exec.Cmd, error)

type Options struct {
	Logger *zap.Logger
	// Command defaults to re-running the current executable with no
	// subcommand, which starts the TUI.
	Command CommandFunc
}

type Server struct {
	cfg     ServerConfig
	tmpl    *template.Template
	log     *zap.Logger
	command CommandFunc
	start   startFunc
}

func NewServer(cfg ServerConfig, opts Options) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("webtui: missing addr")
	}
	tmpl, err := template.ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	command := opts.Command
	if command == nil {
		command = selfCommand
	}
	s := &Server{cfg: cfg, tmpl: tmpl, log: log, command: command}
	s.start = s.startPTYSession
	return s, nil
}

func selfCommand(ctx context.Context, args []string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, exe, args...), nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/terminal", http.StatusFound)
	})
	mux.HandleFunc("GET /terminal", s.handleTerminal)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

type terminalVM struct {
	Args string
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	vm := terminalVM{Args: strings.Join(s.cfg.Args, " ")}
	if err := s.tmpl.ExecuteTemplate(w, "terminal.html", vm); err != nil {
		s.log.Error("render terminal page", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
