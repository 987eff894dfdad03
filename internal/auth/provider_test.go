package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"stockroom-cli/internal/config"
	"stockroom-cli/internal/model"
)

func TestNewProvider_Modes(t *testing.T) {
	signer := NewSigner([]byte("k"))
	for mode, want := range map[string]string{"": ModeNone, "none": ModeNone, "DEV": ModeDev} {
		p, err := NewProvider(config.AuthConfig{Mode: mode}, signer)
		if err != nil {
			t.Fatalf("mode %q: %v", mode, err)
		}
		if p.Name() != want {
			t.Fatalf("mode %q: got provider %s", mode, p.Name())
		}
	}
	if _, err := NewProvider(config.AuthConfig{Mode: "oauth"}, signer); err == nil {
		t.Fatalf("oauth without client id must fail")
	}
	if _, err := NewProvider(config.AuthConfig{Mode: "saml"}, signer); err == nil {
		t.Fatalf("unknown mode must fail")
	}
}

func TestDevProvider(t *testing.T) {
	p := NewDevProvider([]model.User{{ID: "u1", Name: "Ada"}, {Name: "Grace"}})
	ctx := context.Background()

	u, err := p.SignIn(ctx, SignInRequest{User: "u1"})
	if err != nil || u.Name != "Ada" {
		t.Fatalf("by id: %+v %v", u, err)
	}
	u, err = p.SignIn(ctx, SignInRequest{User: "grace"})
	if err != nil || u.ID != "grace" {
		t.Fatalf("by name: %+v %v", u, err)
	}
	if _, err := p.SignIn(ctx, SignInRequest{User: "mallory"}); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}

	if users := NewDevProvider(nil).Users(); len(users) != 1 || users[0].ID != "dev" {
		t.Fatalf("expected fallback dev user, got %+v", users)
	}
}

func TestNoneProvider(t *testing.T) {
	if _, err := (NoneProvider{}).SignIn(context.Background(), SignInRequest{}); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}
}

func newOAuthTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "g-42", "name": "Ada Lovelace", "email": "ada@example.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthProvider_Flow(t *testing.T) {
	srv := newOAuthTestServer(t)
	signer := NewSigner([]byte("k"))
	p, err := NewOAuthProvider(config.OAuthConfig{
		ClientID:     "client",
		ClientSecret: "shh",
		RedirectURL:  "http://localhost/oauth/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	}, signer)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	raw, err := p.AuthCodeURL()
	if err != nil {
		t.Fatalf("auth url: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	state := u.Query().Get("state")
	if u.Query().Get("client_id") != "client" || state == "" {
		t.Fatalf("unexpected auth url: %s", raw)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, srv.Client())

	user, err := p.SignIn(ctx, SignInRequest{Code: "good-code", State: state})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user != (model.User{ID: "g-42", Name: "Ada Lovelace", Email: "ada@example.com"}) {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := p.SignIn(ctx, SignInRequest{Code: "good-code", State: "forged.state"}); err == nil {
		t.Fatalf("forged state must fail")
	}
	if _, err := p.SignIn(ctx, SignInRequest{Code: "bad-code", State: state}); err == nil {
		t.Fatalf("bad code must fail")
	}
}
