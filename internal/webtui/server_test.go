package webtui

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeSession echoes keystrokes back upper-cased and records resizes.
type fakeSession struct {
	mu      sync.Mutex
	out     chan []byte
	resizes [][2]int
	closed  chan struct{}
	once    sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{out: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeSession) Read(p []byte) (int, error) {
	select {
	case b := <-f.out:
		return copy(p, b), nil
	case <-f.closed:
		return 0, io.EOF
	}
}

func (f *fakeSession) Write(p []byte) (int, error) {
	f.out <- bytes.ToUpper(append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeSession) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]int{cols, rows})
	return nil
}

func (f *fakeSession) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSession) lastResize() [2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resizes) == 0 {
		return [2]int{}
	}
	return f.resizes[len(f.resizes)-1]
}

func newTestServer(t *testing.T, sess *fakeSession) *httptest.Server {
	t.Helper()
	s, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Args: []string{"--dir", "/data"}}, Options{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	s.start = func(context.Context) (session, error) { return sess, nil }
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewServer_RequiresAddr(t *testing.T) {
	if _, err := NewServer(ServerConfig{Addr: " "}, Options{}); err == nil {
		t.Fatalf("expected missing addr error")
	}
}

func TestTerminalPage(t *testing.T) {
	srv := newTestServer(t, newFakeSession())

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get /: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/terminal" {
		t.Fatalf("expected redirect to /terminal, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = http.Get(srv.URL + "/terminal")
	if err != nil {
		t.Fatalf("get /terminal: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "stockroom --dir /data") || !strings.Contains(string(body), `"/ws"`) {
		t.Fatalf("unexpected terminal page:\n%s", body)
	}
}

func TestWS_PumpsKeysAndResizes(t *testing.T) {
	sess := newFakeSession()
	srv := newTestServer(t, sess)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","cols":100,"rows":30}`)); err != nil {
		t.Fatalf("write resize: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("a")); err != nil {
		t.Fatalf("write key: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage || string(data) != "A" {
		t.Fatalf("expected echoed key, got %d %q", mt, data)
	}
	if got := sess.lastResize(); got != [2]int{100, 30} {
		t.Fatalf("expected resize 100x30, got %v", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-sess.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the session closed after the socket closed")
	}
}

func TestWS_RejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, newFakeSession())
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatalf("expected foreign origin to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
