package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/store"
)

type testEnv struct {
	srv     *Server
	handler http.Handler
	mem     *store.Memory
	dir     string
}

func newTestEnv(t *testing.T, provider auth.Provider) *testEnv {
	t.Helper()
	dir := t.TempDir()
	mem := store.NewMemory()
	svc := inventory.NewService(mem, inventory.Options{Events: store.EventLog{Dir: dir}})
	srv, err := NewServer(ServerConfig{
		Addr:        "127.0.0.1:0",
		Dir:         dir,
		Locale:      "en",
		SettleDelay: 5 * time.Millisecond,
	}, svc, Options{Provider: provider, Signer: auth.NewSigner([]byte("test-secret"))})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testEnv{srv: srv, handler: srv.Handler(), mem: mem, dir: dir}
}

func (e *testEnv) seed(t *testing.T, items ...model.Item) {
	t.Helper()
	for _, it := range items {
		if err := e.mem.Set(context.Background(), it.Name, store.Document{Quantity: it.Quantity}); err != nil {
			t.Fatalf("seed %s: %v", it.Name, err)
		}
	}
}

func (e *testEnv) items(t *testing.T) []model.Item {
	t.Helper()
	entries, err := e.mem.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := []model.Item{}
	for _, en := range entries {
		out = append(out, model.Item{Name: en.Key, Quantity: en.Quantity})
	}
	return out
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(t, req)
}

func (e *testEnv) postForm(t *testing.T, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(t, req)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.get(t, "/health")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("unexpected health response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestHome_ListsCapitalizedItems(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, model.Item{Name: "apple", Quantity: 3}, model.Item{Name: "banana", Quantity: 1})

	rr := env.get(t, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`id="inventory"`, ">Apple<", ">Banana<", "Sort: Default", `data-init="@get('/events')"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Checking sign-in") || strings.Contains(body, "Sign in") {
		t.Fatalf("ungated server must not render the auth widget")
	}
}

func TestHome_SearchAndSortFromQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t,
		model.Item{Name: "banana", Quantity: 1},
		model.Item{Name: "Apple", Quantity: 2},
		model.Item{Name: "grape", Quantity: 4},
	)

	body := env.get(t, "/?q=AP").Body.String()
	if !strings.Contains(body, ">Apple<") || !strings.Contains(body, ">Grape<") || strings.Contains(body, ">Banana<") {
		t.Fatalf("search must filter case-insensitively:\n%s", body)
	}

	body = env.get(t, "/?sort=desc").Body.String()
	g, b, a := strings.Index(body, ">Grape<"), strings.Index(body, ">Banana<"), strings.Index(body, ">Apple<")
	if !(g < b && b < a) {
		t.Fatalf("expected Z-A order, got positions grape=%d banana=%d apple=%d", g, b, a)
	}
	if !strings.Contains(body, "Sort: Z-A") || !strings.Contains(body, `href="/"`) {
		t.Fatalf("expected sort label and a toggle back to default")
	}

	body = env.get(t, "/?search=1&q=ap").Body.String()
	if !strings.Contains(body, `id="search"`) || !strings.Contains(body, `value="ap"`) {
		t.Fatalf("expected open search overlay with the query")
	}
}

func TestHome_EditorOverlays(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, model.Item{Name: "apple", Quantity: 3})

	body := env.get(t, "/?add=1").Body.String()
	if !strings.Contains(body, "Add item</h2>") || !strings.Contains(body, `action="/items"`) {
		t.Fatalf("expected add overlay:\n%s", body)
	}
	body = env.get(t, "/?edit=apple").Body.String()
	if !strings.Contains(body, "Edit item</h2>") || !strings.Contains(body, `action="/items/apple/edit"`) || !strings.Contains(body, `value="3"`) {
		t.Fatalf("expected edit overlay prefilled:\n%s", body)
	}
	body = env.get(t, "/?edit=ghost").Body.String()
	if strings.Contains(body, `id="editor"`) {
		t.Fatalf("editing a missing item must not open the editor")
	}
}

func TestItemAdd_RedirectsAndKeepsListingState(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.postForm(t, "/items", url.Values{"name": {"apple"}, "quantity": {"3"}, "q": {"ap"}, "sort": {"asc"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/?q=ap&sort=asc" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	env.postForm(t, "/items", url.Values{"name": {"apple"}, "quantity": {"2"}})
	if diff := cmp.Diff([]model.Item{{Name: "apple", Quantity: 5}}, env.items(t)); diff != "" {
		t.Fatalf("inventory mismatch (-want +got):\n%s", diff)
	}
}

func TestItemAdd_ValidationIsInline(t *testing.T) {
	env := newTestEnv(t, nil)
	cases := []struct {
		form url.Values
		want string
	}{
		{url.Values{"name": {""}, "quantity": {"2"}}, "Both fields are required."},
		{url.Values{"name": {"pear"}, "quantity": {""}}, "Both fields are required."},
		{url.Values{"name": {"pear"}, "quantity": {"two"}}, "Quantity must be a whole number."},
		{url.Values{"name": {"pear"}, "quantity": {"0"}}, "Quantity must be at least 1."},
	}
	for _, tc := range cases {
		rr := env.postForm(t, "/items", tc.form)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%v: expected 422, got %d", tc.form, rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, tc.want) || !strings.Contains(body, `id="editor"`) {
			t.Fatalf("%v: expected inline %q with editor open", tc.form, tc.want)
		}
	}
	if got := env.items(t); len(got) != 0 {
		t.Fatalf("validation failures must not write, got %+v", got)
	}
}

func TestItemEdit_RenamesAndResizes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, model.Item{Name: "red apples", Quantity: 3})

	rr := env.postForm(t, "/items/red%20apples/edit", url.Values{"name": {"green apples"}, "quantity": {"7"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rr.Code, rr.Body.String())
	}
	if diff := cmp.Diff([]model.Item{{Name: "green apples", Quantity: 7}}, env.items(t)); diff != "" {
		t.Fatalf("inventory mismatch (-want +got):\n%s", diff)
	}

	rr = env.postForm(t, "/items/ghost/edit", url.Values{"name": {"spirit"}, "quantity": {"1"}})
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `id="editor"`) {
		t.Fatalf("expected 404 with editor kept open, got %d", rr.Code)
	}
}

func TestQuickActions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, model.Item{Name: "apple", Quantity: 1})

	if rr := env.postForm(t, "/items/apple/increment", url.Values{"sort": {"desc"}}); rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/?sort=desc" {
		t.Fatalf("increment: %d %q", rr.Code, rr.Header().Get("Location"))
	}
	env.postForm(t, "/items/apple/decrement", nil)
	env.postForm(t, "/items/apple/decrement", nil)
	if got := env.items(t); len(got) != 0 {
		t.Fatalf("expected apple deleted, got %+v", got)
	}
	if rr := env.postForm(t, "/items/apple/decrement", nil); rr.Code != http.StatusSeeOther {
		t.Fatalf("decrementing a vanished item just refreshes, got %d", rr.Code)
	}
}

func TestAbout_RendersMarkdown(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.get(t, "/about")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `<h1 id="about-stockroom">About stockroom</h1>`) {
		t.Fatalf("expected rendered heading:\n%s", rr.Body.String())
	}
}

func TestRenderMarkdownHTML_DropsRawHTML(t *testing.T) {
	out := string(renderMarkdownHTML("hi <script>alert(1)</script>"))
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html must not pass through: %s", out)
	}
	if renderMarkdownHTML("   ") != "" {
		t.Fatalf("blank source renders nothing")
	}
}

func TestMetrics_CountsRoutesAndMutations(t *testing.T) {
	env := newTestEnv(t, nil)
	env.get(t, "/health")
	env.postForm(t, "/items", url.Values{"name": {"apple"}, "quantity": {"3"}})

	body := env.get(t, "/metrics").Body.String()
	for _, want := range []string{
		`stockroom_http_requests_total{code="200",method="GET",route="GET /health"} 1`,
		`stockroom_http_requests_total{code="303",method="POST",route="POST /items"} 1`,
		`stockroom_inventory_mutations_total{outcome="created"} 1`,
		`stockroom_inventory_items 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics:\n%s", want, body)
		}
	}
}

func TestNewServer_Validates(t *testing.T) {
	svc := inventory.NewService(store.NewMemory(), inventory.Options{})
	if _, err := NewServer(ServerConfig{}, svc, Options{}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if _, err := NewServer(ServerConfig{Dir: t.TempDir()}, nil, Options{}); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestNewServer_LoadsSecretForGatedProvider(t *testing.T) {
	dir := t.TempDir()
	svc := inventory.NewService(store.NewMemory(), inventory.Options{})
	srv, err := NewServer(ServerConfig{Dir: dir}, svc, Options{Provider: auth.NewDevProvider(nil)})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if srv.signer == nil {
		t.Fatalf("expected a signer")
	}
	if _, err := auth.LoadOrInitSecretKey(dir); err != nil {
		t.Fatalf("secret key: %v", err)
	}
}
