package session

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// State is the gate's position in its three-state machine.
type State string

const (
	StateLoading         State = "loading"
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
)

// Gate owns all writes to the session token. It starts in StateLoading
// until Init has checked durable storage. No validity check is performed
// on a stored token; a stale one is only discovered when a request fails.
type Gate struct {
	store Store

	mu        sync.RWMutex
	state     State
	token     string
	listeners []chan State
}

func NewGate(store Store) *Gate {
	return &Gate{
		store: store,
		state: StateLoading,
	}
}

// Init completes the storage check and leaves the gate authenticated or
// not depending on whether a token was found.
func (g *Gate) Init() error {
	token, err := g.store.Load()
	if err != nil {
		g.transition(StateUnauthenticated, "")
		return fmt.Errorf("loading session: %w", err)
	}

	if token == "" {
		g.transition(StateUnauthenticated, "")
	} else {
		g.transition(StateAuthenticated, token)
	}
	return nil
}

func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Token is read by the transport on every outgoing request.
func (g *Gate) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// Login persists the freshly issued token and opens the gate.
func (g *Gate) Login(token string) error {
	if err := g.store.Save(token); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	g.transition(StateAuthenticated, token)
	return nil
}

// Logout clears the stored token and forces a reset to the
// unauthenticated state.
func (g *Gate) Logout() error {
	if err := g.store.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	g.transition(StateUnauthenticated, "")
	return nil
}

// HandleUnauthorized is the global 401 side effect: clear the stored
// token and reset, independent of which call site saw the failure.
func (g *Gate) HandleUnauthorized() {
	if err := g.store.Clear(); err != nil {
		log.Error().Err(err).Msg("clearing session after 401")
	}
	g.transition(StateUnauthenticated, "")
}

// Subscribe returns a channel that receives every state transition.
// Slow consumers miss intermediate states rather than blocking the gate.
func (g *Gate) Subscribe() <-chan State {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan State, 8)
	g.listeners = append(g.listeners, ch)
	return ch
}

func (g *Gate) transition(state State, token string) {
	g.mu.Lock()
	changed := g.state != state
	g.state = state
	g.token = token
	listeners := make([]chan State, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()

	if !changed {
		return
	}

	log.Info().Str("state", string(state)).Msg("session state changed")
	for _, ch := range listeners {
		select {
		case ch <- state:
		default:
		}
	}
}
