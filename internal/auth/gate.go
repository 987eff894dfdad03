// Package auth implements the sign-in gate, sessions and identity providers.
package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockroom-cli/internal/model"
)

const DefaultSettleDelay = 50 * time.Millisecond

type Status string

const (
	StatusLoading   Status = "loading"
	StatusSignedOut Status = "signed-out"
	StatusSignedIn  Status = "signed-in"
)

// GateState is a snapshot of the gate. User is set only when signed in.
type GateState struct {
	Status Status
	User   *model.User
}

type GateOptions struct {
	SettleDelay time.Duration
	Logger      *zap.Logger
	// OnChange is called, outside the gate lock, after every transition.
	OnChange func(GateState)
}

// Gate reports loading after every identity change and settles to
// signed-in or signed-out once the settle delay has passed without a
// further change. Sign-in and sign-out failures are logged, never returned.
type Gate struct {
	provider Provider
	session  *Session
	delay    time.Duration
	log      *zap.Logger
	onChange func(GateState)

	mu     sync.Mutex
	status Status
	gen    uint64
	timer  *time.Timer
	closed bool
}

func NewGate(p Provider, sess *Session, opts GateOptions) *Gate {
	if sess == nil {
		sess = NewSession(nil)
	}
	delay := opts.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		provider: p,
		session:  sess,
		delay:    delay,
		log:      log,
		onChange: opts.OnChange,
		status:   StatusLoading,
	}
}

func (g *Gate) Session() *Session { return g.session }

// Begin mounts the gate on its session and schedules the first settle.
func (g *Gate) Begin() {
	g.session.Begin()
	g.identityChanged()
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *Gate) stateLocked() GateState {
	st := GateState{Status: g.status}
	if g.status == StatusSignedIn {
		if u, ok := g.session.User(); ok {
			st.User = &u
		}
	}
	return st
}

// SignIn asks the provider for an identity and adopts it on success.
func (g *Gate) SignIn(ctx context.Context, req SignInRequest) {
	if g.provider == nil {
		return
	}
	u, err := g.provider.SignIn(ctx, req)
	if err != nil {
		g.log.Warn("sign-in failed", zap.String("provider", g.provider.Name()), zap.Error(err))
		return
	}
	g.session.Set(u)
	g.identityChanged()
}

// SignOut clears the session after the provider agrees.
func (g *Gate) SignOut(ctx context.Context) {
	u, ok := g.session.User()
	if !ok {
		return
	}
	if g.provider != nil {
		if err := g.provider.SignOut(ctx, u); err != nil {
			g.log.Warn("sign-out failed", zap.String("provider", g.provider.Name()), zap.Error(err))
			return
		}
	}
	g.session.Clear()
	g.identityChanged()
}

// Close cancels a pending settle. No further transitions are reported.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Gate) identityChanged() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.gen++
	gen := g.gen
	g.status = StatusLoading
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.delay, func() { g.settle(gen) })
	st := g.stateLocked()
	g.mu.Unlock()

	g.notify(st)
}

func (g *Gate) settle(gen uint64) {
	g.mu.Lock()
	if g.closed || gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.timer = nil
	if _, ok := g.session.User(); ok {
		g.status = StatusSignedIn
	} else {
		g.status = StatusSignedOut
	}
	st := g.stateLocked()
	g.mu.Unlock()

	g.notify(st)
}

func (g *Gate) notify(st GateState) {
	if g.onChange != nil {
		g.onChange(st)
	}
}
