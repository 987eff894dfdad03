package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"stockroom-cli/internal/model"
)

func verifyNoLeaks(t *testing.T) {
	t.Helper()
	goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func newTestGate(t *testing.T, p Provider, sess *Session, log *zap.Logger) (*Gate, <-chan GateState) {
	t.Helper()
	ch := make(chan GateState, 16)
	g := NewGate(p, sess, GateOptions{
		SettleDelay: 5 * time.Millisecond,
		Logger:      log,
		OnChange:    func(st GateState) { ch <- st },
	})
	t.Cleanup(g.Close)
	return g, ch
}

func next(t *testing.T, ch <-chan GateState) GateState {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for gate transition")
		return GateState{}
	}
}

func TestGate_StartsLoadingThenSettlesSignedOut(t *testing.T) {
	defer verifyNoLeaks(t)
	g, ch := newTestGate(t, NoneProvider{}, nil, nil)

	if g.State().Status != StatusLoading {
		t.Fatalf("expected loading before Begin")
	}
	g.Begin()
	if st := next(t, ch); st.Status != StatusLoading {
		t.Fatalf("expected loading first, got %s", st.Status)
	}
	if st := next(t, ch); st.Status != StatusSignedOut || st.User != nil {
		t.Fatalf("expected signed-out, got %+v", st)
	}
	if !g.Session().Begun() {
		t.Fatalf("expected session to be begun")
	}
	g.Close()
}

func TestGate_ExistingSessionSettlesSignedIn(t *testing.T) {
	defer verifyNoLeaks(t)
	g, ch := newTestGate(t, NoneProvider{}, NewSession(&model.User{ID: "u1", Name: "Ada"}), nil)
	g.Begin()
	next(t, ch)
	st := next(t, ch)
	if st.Status != StatusSignedIn || st.User == nil || st.User.Name != "Ada" {
		t.Fatalf("expected Ada signed in, got %+v", st)
	}
	g.Close()
}

func TestGate_SignInAndOut(t *testing.T) {
	defer verifyNoLeaks(t)
	g, ch := newTestGate(t, NewDevProvider([]model.User{{ID: "u1", Name: "Ada"}}), nil, nil)
	ctx := context.Background()
	g.Begin()
	next(t, ch)
	next(t, ch)

	g.SignIn(ctx, SignInRequest{User: "ada"})
	if st := next(t, ch); st.Status != StatusLoading {
		t.Fatalf("identity change must pass through loading, got %s", st.Status)
	}
	if st := next(t, ch); st.Status != StatusSignedIn || st.User.ID != "u1" {
		t.Fatalf("expected signed in as u1, got %+v", st)
	}

	g.SignOut(ctx)
	next(t, ch)
	if st := next(t, ch); st.Status != StatusSignedOut {
		t.Fatalf("expected signed out, got %s", st.Status)
	}
	if _, ok := g.Session().User(); ok {
		t.Fatalf("expected session cleared")
	}
	g.Close()
}

func TestGate_RapidChangesSettleOnce(t *testing.T) {
	defer verifyNoLeaks(t)
	ch := make(chan GateState, 16)
	g := NewGate(NewDevProvider(nil), nil, GateOptions{
		SettleDelay: 30 * time.Millisecond,
		OnChange:    func(st GateState) { ch <- st },
	})
	defer g.Close()

	g.Begin()
	g.SignIn(context.Background(), SignInRequest{User: "dev"})

	if st := next(t, ch); st.Status != StatusLoading {
		t.Fatalf("expected loading, got %s", st.Status)
	}
	if st := next(t, ch); st.Status != StatusLoading {
		t.Fatalf("expected loading, got %s", st.Status)
	}
	if st := next(t, ch); st.Status != StatusSignedIn {
		t.Fatalf("expected a single settle to signed-in, got %s", st.Status)
	}
	select {
	case st := <-ch:
		t.Fatalf("unexpected extra transition: %+v", st)
	case <-time.After(60 * time.Millisecond):
	}
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) SignIn(context.Context, SignInRequest) (model.User, error) {
	return model.User{}, errors.New("popup closed")
}
func (failingProvider) SignOut(context.Context, model.User) error { return errors.New("network down") }

func TestGate_FailuresAreLoggedAndSwallowed(t *testing.T) {
	defer verifyNoLeaks(t)
	core, logs := observer.New(zapcore.WarnLevel)
	sess := NewSession(&model.User{ID: "u1"})
	g, ch := newTestGate(t, failingProvider{}, sess, zap.New(core))
	g.Begin()
	next(t, ch)
	next(t, ch)

	g.SignOut(context.Background())
	g.SignIn(context.Background(), SignInRequest{})

	if st := g.State(); st.Status != StatusSignedIn {
		t.Fatalf("failed calls must not change the gate, got %s", st.Status)
	}
	if logs.FilterMessage("sign-out failed").Len() != 1 || logs.FilterMessage("sign-in failed").Len() != 1 {
		t.Fatalf("expected both failures logged, got %d entries", logs.Len())
	}
	select {
	case st := <-ch:
		t.Fatalf("unexpected transition after failures: %+v", st)
	default:
	}
	g.Close()
}

func TestGate_CloseCancelsPendingSettle(t *testing.T) {
	defer verifyNoLeaks(t)
	ch := make(chan GateState, 4)
	g := NewGate(NoneProvider{}, nil, GateOptions{
		SettleDelay: 20 * time.Millisecond,
		OnChange:    func(st GateState) { ch <- st },
	})
	g.Begin()
	next(t, ch)
	g.Close()

	select {
	case st := <-ch:
		t.Fatalf("no transition expected after Close, got %+v", st)
	case <-time.After(50 * time.Millisecond):
	}
	if g.State().Status != StatusLoading {
		t.Fatalf("expected gate frozen in loading")
	}
}
