package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stockroom-cli/internal/model"
)

const (
	TokenSession = "session"
	TokenState   = "state"
)

var (
	ErrTokenFormat    = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenPayload   = errors.New("invalid token payload")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the signed token payload.
type Claims struct {
	Exp   int64  `json:"exp"`
	Typ   string `json:"typ"`
	Sub   string `json:"sub,omitempty"` // user id
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	N     string `json:"n,omitempty"` // nonce
}

func (c Claims) User() model.User {
	return model.User{ID: c.Sub, Name: c.Name, Email: c.Email}
}

// Signer issues and checks HMAC-SHA256 tokens of the form payload.signature,
// both base64url without padding.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

func SecretKeyPath(dir string) string {
	return filepath.Join(dir, "web", "secret.key")
}

// LoadOrInitSecretKey reads <dir>/web/secret.key, creating it on first use.
func LoadOrInitSecretKey(dir string) ([]byte, error) {
	path := SecretKeyPath(dir)
	if b, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(b))) > 0 {
		return []byte(strings.TrimSpace(string(b))), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(enc+"\n"), 0o600); err != nil {
		return nil, err
	}
	return []byte(enc), nil
}

func (s *Signer) Sign(c Claims) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(b)
	return p + "." + s.mac(p), nil
}

func (s *Signer) mac(p string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(p))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature, expiry and token type.
func (s *Signer) Verify(token, typ string) (Claims, error) {
	p, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || p == "" || sig == "" || strings.Contains(sig, ".") {
		return Claims{}, ErrTokenFormat
	}

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return Claims{}, ErrTokenSignature
	}
	want, _ := base64.RawURLEncoding.DecodeString(s.mac(p))
	if !hmac.Equal(want, got) {
		return Claims{}, ErrTokenSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return Claims{}, ErrTokenPayload
	}
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return Claims{}, ErrTokenPayload
	}
	if c.Exp == 0 {
		return Claims{}, errors.New("token missing exp")
	}
	if s.now().Unix() > c.Exp {
		return Claims{}, ErrTokenExpired
	}
	if c.Typ != typ {
		return Claims{}, errors.New("unexpected token type")
	}
	if c.Typ == TokenSession && strings.TrimSpace(c.Sub) == "" {
		return Claims{}, errors.New("token missing sub")
	}
	return c, nil
}

func (s *Signer) NewSessionToken(u model.User, ttl time.Duration) (string, error) {
	if strings.TrimSpace(u.ID) == "" {
		return "", errors.New("missing user id")
	}
	n, err := newNonce()
	if err != nil {
		return "", err
	}
	return s.Sign(Claims{
		Typ:   TokenSession,
		Sub:   u.ID,
		Name:  u.Name,
		Email: u.Email,
		N:     n,
		Exp:   s.now().Add(ttl).Unix(),
	})
}

// NewStateToken returns an OAuth state value that only this server can mint.
func (s *Signer) NewStateToken(ttl time.Duration) (string, error) {
	n, err := newNonce()
	if err != nil {
		return "", err
	}
	return s.Sign(Claims{Typ: TokenState, N: n, Exp: s.now().Add(ttl).Unix()})
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
