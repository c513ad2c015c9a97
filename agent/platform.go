// Package agent implements the sitelens event-collection agent: session
// continuity, device/page inspection, event batching and activity tracking.
// The embedding environment (a browser bridge, a native shell, tests) is
// reached only through the small capability interfaces in this file, so the
// core logic runs anywhere and tests never need a real DOM or wall clock.
package agent

import (
	"time"

	"sitelens/models"
)

// Clock abstracts time so tests can advance it deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable deadline handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Storage is the persistent key-value store backing session continuity.
// Implementations must be safe for concurrent use.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Sender transmits a drained batch to the collection endpoint.
type Sender interface {
	// Send is the normal asynchronous-mode transport. Errors are logged by
	// the caller and the batch is dropped; there is no retry.
	Send(batch models.Batch) error
	// SendBeacon is the unload-time transport: fire and forget, no
	// response is ever observed.
	SendBeacon(batch models.Batch)
}

// PageReader reports the current page and device context. Snapshots are
// taken at event-creation time, never cached, since URL and viewport can
// change within a page lifecycle.
type PageReader interface {
	Page() models.PageInfo
	Viewport() (width, height int)
	UserAgent() string
	// ScrollPercent is how far down the page the user has scrolled,
	// 0-100. Values outside that range are clamped by the tracker.
	ScrollPercent() int
}

// ElementInfo describes the target of a click as reported by the embedding.
type ElementInfo struct {
	Tag  string
	Href string
	Text string
}

// FormInfo describes a submitted form.
type FormInfo struct {
	ID     string
	Action string
	Method string
}

// InputSource registers the agent's input listeners with the embedding.
// Each On* method is called at most once, during Tracker.Start.
type InputSource interface {
	OnClick(func(ElementInfo))
	OnScroll(func())
	OnSubmit(func(FormInfo))
	OnVisibilityChange(func(hidden bool))
	// OnInteraction fires for the qualifying activity events:
	// mousedown, mousemove, keypress, scroll, touchstart.
	OnInteraction(func())
	OnUnload(func())
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns a Clock backed by the runtime clock.
func SystemClock() Clock { return systemClock{} }
