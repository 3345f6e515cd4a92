package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Identity is the stable user identity records are persisted under. It is
// immutable for the lifetime of the session.
type Identity struct {
	ID        string
	Anonymous bool
}

// Principal is the authenticated entity reported by the auth backend, or nil
// before sign-in completes.
type Principal struct {
	ID        string
	Anonymous bool
}

// Backend is the identity collaborator. Subscribe delivers the current
// principal (or nil) immediately and again on every auth-state change.
type Backend interface {
	SignInAnonymously(ctx context.Context) (*Principal, error)
	SignInWithToken(ctx context.Context, token string) (*Principal, error)
	Subscribe(fn func(*Principal)) (cancel func())
}

// AuthFailure means both token exchange and anonymous sign-in were rejected.
// It is terminal for the session; there is no automatic retry.
type AuthFailure struct {
	TokenErr error
	AnonErr  error
}

func (e *AuthFailure) Error() string {
	if e.TokenErr != nil {
		return fmt.Sprintf("sign-in failed: token: %v; anonymous: %v", e.TokenErr, e.AnonErr)
	}
	return fmt.Sprintf("sign-in failed: %v", e.AnonErr)
}

// State is a snapshot of the provider: either a ready identity, a terminal
// failure, or neither while sign-in is still in flight.
type State struct {
	Identity *Identity
	Ready    bool
	Err      error
}

// Provider establishes the session identity from auth-state notifications.
// It makes at most one sign-in attempt per cold start: token-first when a
// continuation token was supplied, anonymous otherwise.
type Provider struct {
	backend Backend
	token   string

	mu        sync.Mutex
	identity  *Identity
	failure   error
	attempted bool
	listeners []func(State)
	settled   chan struct{}
	cancelSub func()
}

func NewProvider(backend Backend, continuationToken string) *Provider {
	return &Provider{
		backend: backend,
		token:   continuationToken,
		settled: make(chan struct{}),
	}
}

// Start subscribes to auth-state notifications. Repeated notifications are
// idempotent: once a principal exists, or while a sign-in attempt is in
// flight, no further sign-in call is made.
func (p *Provider) Start(ctx context.Context) {
	p.cancelSub = p.backend.Subscribe(func(principal *Principal) {
		p.onAuthState(ctx, principal)
	})
}

// Close releases the auth-state subscription at session end.
func (p *Provider) Close() {
	if p.cancelSub != nil {
		p.cancelSub()
		p.cancelSub = nil
	}
}

func (p *Provider) onAuthState(ctx context.Context, principal *Principal) {
	p.mu.Lock()

	if p.identity != nil || p.failure != nil {
		// The session identity settled; later notifications never trigger
		// another sign-in.
		p.mu.Unlock()
		return
	}

	if principal != nil {
		state, listeners := p.adoptLocked(principal)
		p.mu.Unlock()
		for _, fn := range listeners {
			fn(state)
		}
		return
	}

	if p.attempted {
		// Sign-in already issued for this cold start.
		p.mu.Unlock()
		return
	}
	p.attempted = true
	p.mu.Unlock()

	go p.signIn(ctx)
}

func (p *Provider) signIn(ctx context.Context) {
	var tokenErr error
	if p.token != "" {
		principal, err := p.backend.SignInWithToken(ctx, p.token)
		if err == nil {
			p.adopt(principal)
			return
		}
		tokenErr = err
		slog.Warn("Token sign-in rejected, falling back to anonymous", "err", err)
	}

	principal, err := p.backend.SignInAnonymously(ctx)
	if err == nil {
		p.adopt(principal)
		return
	}

	failure := &AuthFailure{TokenErr: tokenErr, AnonErr: err}
	slog.Error("Sign-in failed", "err", failure)

	p.mu.Lock()
	if p.identity == nil && p.failure == nil {
		p.failure = failure
		close(p.settled)
	}
	listeners := p.listeners
	state := p.stateLocked()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (p *Provider) adopt(principal *Principal) {
	p.mu.Lock()
	if p.identity != nil || p.failure != nil {
		p.mu.Unlock()
		return
	}
	state, listeners := p.adoptLocked(principal)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (p *Provider) adoptLocked(principal *Principal) (State, []func(State)) {
	id := principal.ID
	if id == "" {
		// No stable identifier obtainable from the backend.
		id = uuid.NewString()
	}

	p.identity = &Identity{ID: id, Anonymous: principal.Anonymous}
	close(p.settled)
	slog.Info("Identity ready", "uid", p.identity.ID, "anonymous", p.identity.Anonymous)

	return p.stateLocked(), p.listeners
}

// OnChange registers a callback invoked when the provider becomes ready or
// fails. Must be called before Start.
func (p *Provider) OnChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Snapshot returns the current provider state.
func (p *Provider) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Provider) stateLocked() State {
	return State{
		Identity: p.identity,
		Ready:    p.identity != nil,
		Err:      p.failure,
	}
}

// WaitReady blocks until an identity is established, sign-in fails, or the
// context is done.
func (p *Provider) WaitReady(ctx context.Context) (*Identity, error) {
	select {
	case <-p.settled:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return nil, p.failure
	}
	return p.identity, nil
}
