package agent

import (
	"math"
	"sync"
	"time"
)

// DefaultInactivityTimeout is how long without a qualifying interaction
// before an active interval is considered idle.
const DefaultInactivityTimeout = 60 * time.Second

type activityState int

const (
	stateActive activityState = iota
	stateInactive
)

// ActivityMonitor is a two-state machine over "the user is actively
// engaged with this tab". An interval opens when the tab becomes visible
// or the user interacts after being idle, and closes on tab hide, idle
// timeout, or unload. Only the hide and unload transitions report the
// interval length; the idle timeout closes the interval silently.
type ActivityMonitor struct {
	clock      Clock
	timeout    time.Duration
	onDuration func(seconds int)

	mu           sync.Mutex
	state        activityState
	startTime    time.Time
	lastActivity time.Time
	timer        Timer
}

// NewActivityMonitor starts in the Active state with the interval opening
// at construction time. onDuration receives closed-interval lengths in
// whole seconds and is never called with zero.
func NewActivityMonitor(clock Clock, timeout time.Duration, onDuration func(seconds int)) *ActivityMonitor {
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	now := clock.Now()
	m := &ActivityMonitor{
		clock:        clock,
		timeout:      timeout,
		onDuration:   onDuration,
		state:        stateActive,
		startTime:    now,
		lastActivity: now,
	}
	m.timer = clock.AfterFunc(timeout, m.idleCheck)
	return m
}

// Touch records a qualifying interaction. It re-arms the idle timer and,
// if the monitor had gone inactive, opens a fresh interval.
func (m *ActivityMonitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.lastActivity = now
	if m.state == stateInactive {
		m.state = stateActive
		m.startTime = now
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(m.timeout, m.idleCheck)
}

// Hide handles the tab becoming hidden: the interval closes and its
// length is reported if positive.
func (m *ActivityMonitor) Hide() {
	m.mu.Lock()
	seconds := 0
	if m.state == stateActive {
		seconds = m.elapsedLocked()
		m.state = stateInactive
	}
	cb := m.onDuration
	m.mu.Unlock()

	if seconds > 0 && cb != nil {
		cb(seconds)
	}
}

// Show handles the tab becoming visible again: a new interval opens now.
func (m *ActivityMonitor) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.state = stateActive
	m.startTime = now
	m.lastActivity = now
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(m.timeout, m.idleCheck)
}

// Active reports whether an interval is currently open.
func (m *ActivityMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateActive
}

// Finish closes the current interval and returns its length in seconds.
// Returns 0 when the interval is already closed or empty, so stacked
// unload paths (beforeunload, pagehide, hidden fallback) cannot report
// the same interval twice.
func (m *ActivityMonitor) Finish() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateActive {
		return 0
	}
	m.state = stateInactive
	return m.elapsedLocked()
}

func (m *ActivityMonitor) idleCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateActive && m.clock.Now().Sub(m.lastActivity) >= m.timeout {
		m.state = stateInactive
	}
}

func (m *ActivityMonitor) elapsedLocked() int {
	return int(math.Round(m.clock.Now().Sub(m.startTime).Seconds()))
}
