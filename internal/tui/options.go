package tui

import "time"

type Option func(*Model)

// DefaultRefreshInterval is how often the monitor re-reads queue state.
const DefaultRefreshInterval = 2 * time.Second

// WithRefreshInterval sets the polling interval. Zero or negative disables polling.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Model) {
		m.refreshInterval = interval
	}
}

// WithSignalSource labels connectivity changes made from the monitor.
func WithSignalSource(source string) Option {
	return func(m *Model) {
		if source != "" {
			m.signalSource = source
		}
	}
}

// WithClock overrides the time source used for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}
