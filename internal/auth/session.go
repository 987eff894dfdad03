package auth

import (
	"sync"
	"time"

	"stockroom-cli/internal/model"
)

// Session carries the signed-in user explicitly instead of process-wide
// state. Begin marks it live when a surface mounts; Clear forgets the user.
type Session struct {
	mu      sync.Mutex
	user    *model.User
	begunAt time.Time
}

func NewSession(u *model.User) *Session {
	s := &Session{}
	if u != nil {
		cp := *u
		s.user = &cp
	}
	return s
}

func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begunAt.IsZero() {
		s.begunAt = time.Now()
	}
}

func (s *Session) Begun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.begunAt.IsZero()
}

func (s *Session) Set(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

// User returns a copy of the current user.
func (s *Session) User() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}
