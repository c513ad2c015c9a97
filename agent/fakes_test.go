package agent

import (
	"errors"
	"sync"
	"testing"
	"time"

	"sitelens/models"
)

// fakeClock is a deterministic Clock. Timers fire synchronously from
// Advance, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 8, 24, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires every due, unstopped timer.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	var remaining []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
			continue
		}
		remaining = append(remaining, t)
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range due {
		if !t.stopped {
			t.fn()
		}
	}
}

// fakeSender records batches and signals each normal-mode send on a
// channel, since the batcher transmits from a goroutine.
type fakeSender struct {
	mu      sync.Mutex
	sent    []models.Batch
	beacons []models.Batch
	err     error
	sendCh  chan models.Batch
}

func newFakeSender() *fakeSender {
	return &fakeSender{sendCh: make(chan models.Batch, 16)}
}

func (s *fakeSender) Send(batch models.Batch) error {
	s.mu.Lock()
	s.sent = append(s.sent, batch)
	err := s.err
	s.mu.Unlock()
	s.sendCh <- batch
	return err
}

func (s *fakeSender) SendBeacon(batch models.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beacons = append(s.beacons, batch)
}

func (s *fakeSender) waitForSend(t *testing.T) models.Batch {
	t.Helper()
	select {
	case batch := <-s.sendCh:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a send")
		return models.Batch{}
	}
}

func (s *fakeSender) expectNoSend(t *testing.T) {
	t.Helper()
	select {
	case batch := <-s.sendCh:
		t.Fatalf("unexpected send of %d events", len(batch.Events))
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *fakeSender) beaconBatches() []models.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Batch, len(s.beacons))
	copy(out, s.beacons)
	return out
}

// failingStorage errors on every operation, driving the session store
// into degraded mode.
type failingStorage struct{}

func (failingStorage) Get(string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}

func (failingStorage) Set(string, string) error {
	return errors.New("storage unavailable")
}

// fakePage is a scriptable PageReader.
type fakePage struct {
	mu     sync.Mutex
	page   models.PageInfo
	width  int
	height int
	ua     string
	scroll int
}

func (p *fakePage) Page() models.PageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *fakePage) Viewport() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

func (p *fakePage) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ua
}

func (p *fakePage) ScrollPercent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scroll
}

func (p *fakePage) setScroll(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scroll = pct
}

// fakeInput captures the listeners the tracker installs so tests can
// fire synthetic input events.
type fakeInput struct {
	click      func(ElementInfo)
	scroll     func()
	submit     func(FormInfo)
	visibility func(hidden bool)
	interact   func()
	unload     func()
}

func (f *fakeInput) OnClick(fn func(ElementInfo))            { f.click = fn }
func (f *fakeInput) OnScroll(fn func())                      { f.scroll = fn }
func (f *fakeInput) OnSubmit(fn func(FormInfo))              { f.submit = fn }
func (f *fakeInput) OnVisibilityChange(fn func(hidden bool)) { f.visibility = fn }
func (f *fakeInput) OnInteraction(fn func())                 { f.interact = fn }
func (f *fakeInput) OnUnload(fn func())                      { f.unload = fn }
