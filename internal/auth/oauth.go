package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"stockroom-cli/internal/config"
	"stockroom-cli/internal/model"
)

const stateTTL = 10 * time.Minute

// OAuthProvider runs the authorization-code flow and reads the profile from
// an OpenID Connect userinfo endpoint. Google is the default.
type OAuthProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
	signer      *Signer
}

func NewOAuthProvider(cfg config.OAuthConfig, signer *Signer) (*OAuthProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oauth: client_id is required")
	}
	if signer == nil {
		return nil, errors.New("oauth: signer is required")
	}
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = "https://openidconnect.googleapis.com/v1/userinfo"
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	return &OAuthProvider{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfo,
		signer:      signer,
	}, nil
}

func (p *OAuthProvider) Name() string { return ModeOAuth }

// AuthCodeURL returns where to send the browser, with a signed state value.
func (p *OAuthProvider) AuthCodeURL() (string, error) {
	state, err := p.signer.NewStateToken(stateTTL)
	if err != nil {
		return "", err
	}
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

func (p *OAuthProvider) SignIn(ctx context.Context, req SignInRequest) (model.User, error) {
	if _, err := p.signer.Verify(req.State, TokenState); err != nil {
		return model.User{}, fmt.Errorf("oauth state: %w", err)
	}
	if strings.TrimSpace(req.Code) == "" {
		return model.User{}, errors.New("oauth: missing code")
	}
	tok, err := p.cfg.Exchange(ctx, req.Code)
	if err != nil {
		return model.User{}, fmt.Errorf("oauth exchange: %w", err)
	}
	return p.fetchUser(ctx, tok)
}

type userInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p *OAuthProvider) fetchUser(ctx context.Context, tok *oauth2.Token) (model.User, error) {
	client := p.cfg.Client(ctx, tok)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return model.User{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.User{}, fmt.Errorf("oauth userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.User{}, fmt.Errorf("oauth userinfo: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return model.User{}, fmt.Errorf("oauth userinfo: %w", err)
	}
	if info.Sub == "" {
		return model.User{}, errors.New("oauth userinfo: missing sub")
	}
	name := info.Name
	if name == "" {
		name = info.Email
	}
	return model.User{ID: info.Sub, Name: name, Email: info.Email}, nil
}

// SignOut has nothing to revoke: the session cookie is the only credential kept.
func (p *OAuthProvider) SignOut(context.Context, model.User) error { return nil }
