package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"stockroom-cli/internal/model"
)

// openStream connects to /events and returns a channel of SSE data lines.
func openStream(t *testing.T, base, target string, cookies ...*http.Cookie) <-chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+target, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := make(chan string, 256)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

// waitFor reads lines until one contains every fragment.
func waitFor(t *testing.T, lines <-chan string, fragments ...string) string {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed while waiting for %q", fragments)
			}
			match := true
			for _, f := range fragments {
				if !strings.Contains(line, f) {
					match = false
					break
				}
			}
			if match {
				return line
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", fragments)
			return ""
		}
	}
}

func TestEventsStream_PatchesInventoryOnChange(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	lines := openStream(t, ts.URL, "/events?q=ap")

	resp, err := http.PostForm(ts.URL+"/items", url.Values{"name": {"apple"}, "quantity": {"3"}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	waitFor(t, lines, ">Apple<")
}

func TestEventsStream_GateSettlesSignedIn(t *testing.T) {
	env := newTestEnv(t, devProvider())
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	c := sessionCookie(t, env.postForm(t, "/login", url.Values{"user": {"u1"}}))
	lines := openStream(t, ts.URL, "/events", c)

	waitFor(t, lines, "Checking sign-in")
	waitFor(t, lines, "Signed in as Ada")
}

func TestEventsStream_SignedOutGetsNoInventory(t *testing.T) {
	env := newTestEnv(t, devProvider())
	env.seed(t, model.Item{Name: "apple", Quantity: 1})
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	lines := openStream(t, ts.URL, "/events")
	waitFor(t, lines, `<a href="/login">Sign in</a>`)

	env.srv.hub.broadcast()
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case line := <-lines:
			if strings.Contains(line, "#inventory") {
				t.Fatalf("signed-out stream must not receive the inventory: %s", line)
			}
		case <-deadline:
			return
		}
	}
}

func TestEventLogWatcher_BroadcastsOnAppend(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newEventLogWatcher(env.srv.events.Path(), env.srv.hub, env.srv.log).run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("watcher: %v", err)
		}
	})

	ch, unsubscribe := env.srv.hub.subscribe()
	defer unsubscribe()

	// The watcher may still be registering; keep appending until it notices.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ch:
			return
		case <-tick.C:
			if _, err := env.srv.events.Append(context.Background(), model.Event{Type: model.EventItemAdd, Name: "apple", Quantity: 1}); err != nil {
				t.Fatalf("append: %v", err)
			}
		case <-deadline:
			t.Fatalf("watcher never broadcast")
		}
	}
}

func TestResourceHub_NonBlocking(t *testing.T) {
	h := newResourceHub()
	ch, cancel := h.subscribe()
	for i := 0; i < 100; i++ {
		h.broadcast()
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected a full buffer, got %d", len(ch))
	}
	cancel()
	if h.len() != 0 {
		t.Fatalf("expected no subscribers after cancel")
	}
	h.broadcast()
}
