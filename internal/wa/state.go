package wa

import (
	"fmt"
	"slices"
	"sync"

	"github.com/wilofice/enel/internal/bus"
)

// State represents the connection lifecycle of the WhatsApp session.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	LoggedOut    State = "LOGGED_OUT"
)

var validTransitions = map[State][]State{
	Booting:      {AuthRequired, Connecting},
	AuthRequired: {Connecting},
	Connecting:   {Ready, AuthRequired, Reconnecting},
	Ready:        {Reconnecting, LoggedOut},
	Reconnecting: {Connecting, Ready, LoggedOut},
	LoggedOut:    {AuthRequired},
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine in the Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts a move; invalid moves are rejected.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: to}))
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
