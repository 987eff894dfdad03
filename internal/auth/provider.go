package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockroom-cli/internal/config"
	"stockroom-cli/internal/model"
)

const (
	ModeNone  = "none"
	ModeDev   = "dev"
	ModeOAuth = "oauth"
)

var (
	ErrAuthDisabled = errors.New("auth is disabled")
	ErrUnknownUser  = errors.New("unknown user")
)

// SignInRequest carries whatever the provider needs: a user pick for dev,
// the authorization code and state for OAuth.
type SignInRequest struct {
	User  string
	Code  string
	State string
}

type Provider interface {
	Name() string
	SignIn(ctx context.Context, req SignInRequest) (model.User, error)
	SignOut(ctx context.Context, u model.User) error
}

// NewProvider builds the provider for cfg.Mode. OAuth state values are
// minted and checked with signer.
func NewProvider(cfg config.AuthConfig, signer *Signer) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeNone:
		return NoneProvider{}, nil
	case ModeDev:
		users := make([]model.User, 0, len(cfg.Users))
		for _, u := range cfg.Users {
			users = append(users, model.User{ID: u.ID, Name: u.Name, Email: u.Email})
		}
		return NewDevProvider(users), nil
	case ModeOAuth:
		return NewOAuthProvider(cfg.OAuth, signer)
	default:
		return nil, fmt.Errorf("unknown auth mode: %s (expected none|dev|oauth)", cfg.Mode)
	}
}

// NoneProvider is used when the gate is disabled; nobody can sign in.
type NoneProvider struct{}

func (NoneProvider) Name() string { return ModeNone }

func (NoneProvider) SignIn(context.Context, SignInRequest) (model.User, error) {
	return model.User{}, ErrAuthDisabled
}

func (NoneProvider) SignOut(context.Context, model.User) error { return nil }

// DevProvider signs in any configured user by id or display name, no secret.
type DevProvider struct {
	users []model.User
}

// NewDevProvider falls back to a single "dev" user when users is empty.
func NewDevProvider(users []model.User) *DevProvider {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		u.ID = strings.TrimSpace(u.ID)
		u.Name = strings.TrimSpace(u.Name)
		if u.ID == "" {
			u.ID = strings.ToLower(u.Name)
		}
		if u.ID == "" {
			continue
		}
		if u.Name == "" {
			u.Name = u.ID
		}
		out = append(out, u)
	}
	if len(out) == 0 {
		out = []model.User{{ID: "dev", Name: "Developer"}}
	}
	return &DevProvider{users: out}
}

func (p *DevProvider) Name() string { return ModeDev }

func (p *DevProvider) Users() []model.User {
	return append([]model.User(nil), p.users...)
}

func (p *DevProvider) SignIn(_ context.Context, req SignInRequest) (model.User, error) {
	pick := strings.TrimSpace(req.User)
	for _, u := range p.users {
		if u.ID == pick || strings.EqualFold(u.Name, pick) {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("%w: %q", ErrUnknownUser, pick)
}

func (p *DevProvider) SignOut(context.Context, model.User) error { return nil }
