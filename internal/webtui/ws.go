package webtui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// session is one running terminal program.
type session interface {
	io.ReadWriter
	Resize(cols, rows int) error
	Close() error
}

type startFunc func(ctx context.Context) (session, error)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from this host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, err := s.start(ctx)
	if err != nil {
		s.log.Error("start terminal session", zap.Error(err))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("failed to start session: "+err.Error()))
		return
	}
	s.log.Info("terminal session started", zap.String("remote", r.RemoteAddr))

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- pumpSessionToWS(sess, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- pumpWSToSession(conn, sess)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			s.log.Debug("terminal session ended", zap.Error(err))
		}
	}
	cancel()
	// Closing both ends unblocks whichever pump is still reading.
	_ = sess.Close()
	_ = conn.Close()
	wg.Wait()
	s.log.Info("terminal session closed", zap.String("remote", r.RemoteAddr))
}

type ptySession struct {
	*os.File
	stop func()
}

func (p *ptySession) Resize(cols, rows int) error {
	return pty.Setsize(p.File, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (p *ptySession) Close() error {
	err := p.File.Close()
	p.stop()
	return err
}

func (s *Server) startPTYSession(ctx context.Context) (session, error) {
	cmd, err := s.command(ctx, s.cfg.Args)
	if err != nil {
		return nil, err
	}
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 120, Rows: 40})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return &ptySession{File: ptmx, stop: func() {
		once.Do(func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			_ = cmd.Wait()
		})
	}}, nil
}

func pumpSessionToWS(sess io.Reader, conn *websocket.Conn) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := sess.Read(buf)
		if n > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// pumpWSToSession forwards keystrokes. Text frames starting with '{' are
// control messages; only resize is understood.
func pumpWSToSession(conn *websocket.Conn, sess session) error {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt == websocket.TextMessage && len(data) > 0 && data[0] == '{' {
			var m wsMsg
			if json.Unmarshal(data, &m) != nil {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(m.Type), "resize") && m.Cols > 0 && m.Rows > 0 {
				_ = sess.Resize(m.Cols, m.Rows)
			}
			continue
		}
		if len(data) == 0 {
			continue
		}
		if _, err := sess.Write(data); err != nil {
			return err
		}
	}
}
