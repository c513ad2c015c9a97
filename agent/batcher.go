package agent

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sitelens/models"
)

const (
	// DefaultBatchSize is the queue length that triggers an eager flush.
	DefaultBatchSize = 10
	// DefaultBatchTimeout is how long a non-eager event may sit queued
	// before a time-triggered flush.
	DefaultBatchTimeout = 5 * time.Second
)

// eagerTypes flush the queue immediately after being enqueued.
var eagerTypes = map[string]bool{
	models.EventTypePageView: true,
}

// Batcher buffers events and decides when to hand them to the Sender,
// trading latency against request volume. Triggers, first match wins:
// eager event type, size threshold, batch timeout. Delivery is
// at-most-once: a failed send is logged and the batch dropped.
type Batcher struct {
	sender  Sender
	clock   Clock
	size    int
	timeout time.Duration
	log     zerolog.Logger

	mu    sync.Mutex
	queue []models.Event
	timer Timer
}

func NewBatcher(sender Sender, clock Clock, size int, timeout time.Duration, log zerolog.Logger) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	return &Batcher{
		sender:  sender,
		clock:   clock,
		size:    size,
		timeout: timeout,
		log:     log,
	}
}

// Enqueue appends an event to the queue and evaluates the flush triggers.
func (b *Batcher) Enqueue(ev models.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)

	if !eagerTypes[ev.EventType] && len(b.queue) < b.size {
		if b.timer == nil {
			b.timer = b.clock.AfterFunc(b.timeout, func() { b.Flush(false) })
		}
		b.mu.Unlock()
		return
	}

	batch := b.drainLocked()
	b.mu.Unlock()
	b.transmit(batch, false)
}

// Flush drains the queue atomically and transmits it. With useBeacon the
// send is synchronous fire-and-forget; otherwise it runs asynchronously
// and a failure is only logged.
func (b *Batcher) Flush(useBeacon bool) {
	b.mu.Lock()
	batch := b.drainLocked()
	b.mu.Unlock()
	b.transmit(batch, useBeacon)
}

// Pending is the number of queued, not-yet-flushed events.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Batcher) drainLocked() []models.Event {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.queue
	b.queue = nil
	return batch
}

func (b *Batcher) transmit(events []models.Event, useBeacon bool) {
	if len(events) == 0 {
		return
	}
	batch := models.Batch{Events: events}

	if useBeacon {
		b.sender.SendBeacon(batch)
		return
	}
	go func() {
		if err := b.sender.Send(batch); err != nil {
			b.log.Warn().Err(err).Int("events", len(batch.Events)).Msg("batch send failed, dropping events")
		}
	}()
}
