package app

import (
	"sync"
	"time"
)

// Transition describes one offline to online change.
type Transition struct {
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
	Source string    `json:"source"`
}

// ConnectivityState is a point-in-time view of the monitor.
type ConnectivityState struct {
	Online  bool      `json:"online"`
	Since   time.Time `json:"since"`
	Source  string    `json:"source"`
	Changes int       `json:"changes"`
}

// Monitor tracks connectivity and notifies subscribers when the link comes back.
type Monitor struct {
	mu      sync.Mutex
	clock   Clock
	state   ConnectivityState
	nextSub int
	subs    map[int]func(Transition)
}

// NewMonitor constructs a monitor in the given initial state.
func NewMonitor(online bool, clock Clock) *Monitor {
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{
		clock: clock,
		state: ConnectivityState{Online: online, Since: clock().UTC(), Source: "initial"},
		subs:  map[int]func(Transition){},
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Online
}

// State returns the current connectivity snapshot.
func (m *Monitor) State() ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for offline to online transitions and returns its unsubscribe func.
func (m *Monitor) Subscribe(fn func(Transition)) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// SetOnline records a connectivity signal and reports whether the state changed.
// Only an offline to online change notifies subscribers, once, outside the lock.
func (m *Monitor) SetOnline(online bool, source string) bool {
	m.mu.Lock()
	if m.state.Online == online {
		m.mu.Unlock()
		return false
	}
	now := m.clock().UTC()
	m.state = ConnectivityState{Online: online, Since: now, Source: source, Changes: m.state.Changes + 1}
	var subs []func(Transition)
	if online {
		subs = make([]func(Transition), 0, len(m.subs))
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	ev := Transition{Online: online, At: now, Source: source}
	for _, fn := range subs {
		fn(ev)
	}
	return true
}
