package web

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/model"
)

const sessionCookieName = "stockroom_session"

type loginVM struct {
	baseVM
	Users []model.User
	Error string
}

// gated reports whether the listing requires a signed-in user.
func (s *Server) gated() bool {
	return s.provider.Name() != auth.ModeNone
}

// userFromRequest reads the session cookie. An invalid or expired token is
// treated as no session.
func (s *Server) userFromRequest(r *http.Request) (model.User, bool) {
	if s.signer == nil {
		return model.User{}, false
	}
	c, err := r.Cookie(sessionCookieName)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return model.User{}, false
	}
	claims, err := s.signer.Verify(c.Value, auth.TokenSession)
	if err != nil {
		return model.User{}, false
	}
	u := claims.User()
	if u.ID == "" {
		return model.User{}, false
	}
	return u, true
}

// sessionFor builds the per-request auth session from the cookie.
func (s *Server) sessionFor(r *http.Request) *auth.Session {
	if u, ok := s.userFromRequest(r); ok {
		return auth.NewSession(&u)
	}
	return auth.NewSession(nil)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, u model.User) error {
	tok, err := s.signer.NewSessionToken(u, s.cfg.SessionTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	switch s.provider.Name() {
	case auth.ModeDev:
		s.writeLogin(w, r, http.StatusOK, "")
	case auth.ModeOAuth:
		http.Redirect(w, r, "/oauth/start", http.StatusSeeOther)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) writeLogin(w http.ResponseWriter, r *http.Request, status int, msg string) {
	vm := loginVM{baseVM: s.baseVMForRequest(r, ""), Error: msg}
	if dev, ok := s.provider.(*auth.DevProvider); ok {
		vm.Users = dev.Users()
	}
	s.writeHTMLTemplateStatus(w, status, "login.html", vm)
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if s.provider.Name() != auth.ModeDev {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pick := strings.TrimSpace(r.Form.Get("user"))
	if pick == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	u, err := s.provider.SignIn(r.Context(), auth.SignInRequest{User: pick})
	if err != nil {
		s.log.Warn("sign-in failed", zap.String("provider", s.provider.Name()), zap.Error(err))
		s.writeLogin(w, r, http.StatusOK, "Sign-in failed.")
		return
	}
	if err := s.setSessionCookie(w, u); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	p, ok := s.provider.(*auth.OAuthProvider)
	if !ok {
		http.NotFound(w, r)
		return
	}
	target, err := p.AuthCodeURL()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.provider.(*auth.OAuthProvider); !ok {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	if e := strings.TrimSpace(q.Get("error")); e != "" {
		s.log.Warn("sign-in failed", zap.String("provider", auth.ModeOAuth), zap.String("error", e))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	u, err := s.provider.SignIn(r.Context(), auth.SignInRequest{Code: q.Get("code"), State: q.Get("state")})
	if err != nil {
		s.log.Warn("sign-in failed", zap.String("provider", auth.ModeOAuth), zap.Error(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := s.setSessionCookie(w, u); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogoutPost keeps the session when the provider refuses to sign out.
func (s *Server) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	if !s.gated() {
		http.NotFound(w, r)
		return
	}
	if u, ok := s.userFromRequest(r); ok {
		if err := s.provider.SignOut(r.Context(), u); err != nil {
			s.log.Warn("sign-out failed", zap.String("provider", s.provider.Name()), zap.Error(err))
			redirectBack(w, r, "/")
			return
		}
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
