package agent

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sitelens/models"
)

// DefaultScrollDebounce is the trailing debounce applied to scroll events.
const DefaultScrollDebounce = time.Second

const maxClickTextLen = 100

// downloadExtensions is the fixed set of href extensions reported as
// downloads. Matching is case-insensitive.
var downloadExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "zip": true, "rar": true, "exe": true,
	"dmg": true, "pkg": true, "deb": true,
}

var formTags = map[string]bool{
	"button": true, "input": true, "select": true, "textarea": true,
	"form": true, "label": true, "option": true,
}

// Config configures a Tracker. WebsiteID is the only required field.
type Config struct {
	WebsiteID         string
	APIURL            string
	BatchSize         int
	BatchTimeout      time.Duration
	SessionTimeout    time.Duration
	InactivityTimeout time.Duration
	ScrollDebounce    time.Duration
	Logger            zerolog.Logger
}

// Platform bundles the capability adapters a Tracker runs against. Clock
// and Storage default to the system clock and an in-memory store; Sender
// defaults to an HTTPSender against Config.APIURL.
type Platform struct {
	Clock   Clock
	Storage Storage
	Sender  Sender
	Page    PageReader
	Input   InputSource
}

// Tracker is the public entry point of the agent. It owns the event
// queue, session store and activity monitor exclusively; nothing here is
// package-level state, so instances never interfere with each other.
//
// All exported methods are safe on a nil receiver: an embedding that
// failed to construct a tracker gets no-ops, never panics.
type Tracker struct {
	cfg      Config
	clock    Clock
	page     PageReader
	input    InputSource
	sessions *SessionStore
	batcher  *Batcher
	activity *ActivityMonitor
	log      zerolog.Logger

	mu          sync.Mutex
	started     bool
	scrollTimer Timer
}

// New wires a Tracker from its components. A missing website id is the
// one fatal construction error: the tracker never starts and the host
// application is unaffected.
func New(cfg Config, p Platform) (*Tracker, error) {
	if cfg.WebsiteID == "" {
		return nil, fmt.Errorf("tracker: website id is required")
	}
	if cfg.ScrollDebounce <= 0 {
		cfg.ScrollDebounce = DefaultScrollDebounce
	}
	if p.Clock == nil {
		p.Clock = SystemClock()
	}
	if p.Storage == nil {
		p.Storage = NewMemoryStorage()
	}
	if p.Sender == nil {
		if cfg.APIURL == "" {
			return nil, fmt.Errorf("tracker: an api url or a sender is required")
		}
		p.Sender = NewHTTPSender(cfg.APIURL)
	}
	if p.Page == nil {
		p.Page = blankPage{}
	}

	t := &Tracker{
		cfg:   cfg,
		clock: p.Clock,
		page:  p.Page,
		input: p.Input,
		log:   cfg.Logger,
	}
	t.sessions = NewSessionStore(p.Storage, cfg.SessionTimeout, p.Clock, cfg.Logger)
	t.batcher = NewBatcher(p.Sender, p.Clock, cfg.BatchSize, cfg.BatchTimeout, cfg.Logger)
	t.activity = NewActivityMonitor(p.Clock, cfg.InactivityTimeout, func(seconds int) {
		t.Track(models.EventTypeDuration, map[string]interface{}{"duration_seconds": seconds})
	})
	return t, nil
}

// Start installs the input listeners and records the initial page view.
func (t *Tracker) Start() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	if t.input != nil {
		t.input.OnClick(t.handleClick)
		t.input.OnScroll(t.handleScroll)
		t.input.OnSubmit(t.handleSubmit)
		t.input.OnVisibilityChange(t.handleVisibility)
		t.input.OnInteraction(t.activity.Touch)
		t.input.OnUnload(t.Close)
	}
	t.Track(models.EventTypePageView, nil)
}

// Track records an event of the given type. It never lets a failure
// escape into the host: panics are recovered and logged.
func (t *Tracker) Track(eventType string, customData map[string]interface{}) {
	if t == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Str("event_type", eventType).Msg("track failed")
		}
	}()

	ev := models.Event{
		WebsiteID:  t.cfg.WebsiteID,
		SessionID:  t.sessions.GetOrCreate(t.cfg.WebsiteID),
		EventType:  eventType,
		Timestamp:  t.clock.Now().UTC(),
		Page:       t.page.Page(),
		Device:     snapshotDevice(t.page),
		CustomData: customData,
	}
	t.batcher.Enqueue(ev)
}

// Identify associates the session with a user id and optional traits.
func (t *Tracker) Identify(userID string, traits map[string]interface{}) {
	if t == nil {
		return
	}
	t.Track(models.EventTypeIdentify, map[string]interface{}{
		"user_id": userID,
		"traits":  traits,
	})
}

// TrackEvent records a named custom event.
func (t *Tracker) TrackEvent(eventName string, properties map[string]interface{}) {
	if t == nil {
		return
	}
	t.Track(models.EventTypeCustom, map[string]interface{}{
		"event_name": eventName,
		"properties": properties,
	})
}

// TrackGoal records a goal completion with an optional value.
func (t *Tracker) TrackGoal(goalName string, value float64) {
	if t == nil {
		return
	}
	t.Track(models.EventTypeGoal, map[string]interface{}{
		"goal_name": goalName,
		"value":     value,
	})
}

// Flush force-sends everything queued. Exposed for embeddings that know a
// good moment to drain, e.g. before navigating away.
func (t *Tracker) Flush() {
	if t == nil {
		return
	}
	t.batcher.Flush(false)
}

// Close is the unload path: it reports the final activity interval if one
// is open, then beacon-flushes everything still queued.
func (t *Tracker) Close() {
	if t == nil {
		return
	}
	if seconds := t.activity.Finish(); seconds > 0 {
		t.Track(models.EventTypeDuration, map[string]interface{}{"duration_seconds": seconds})
	}
	t.batcher.Flush(true)
}

func (t *Tracker) handleClick(el ElementInfo) {
	data := map[string]interface{}{
		"element_type": classifyElement(el),
	}
	if el.Href != "" {
		data["href"] = el.Href
	}
	if text := truncate(strings.TrimSpace(el.Text), maxClickTextLen); text != "" {
		data["text"] = text
	}
	t.Track(models.EventTypeClick, data)

	// Independent of the click classification: a link to a known document
	// type also counts as a download.
	if name, ext, ok := classifyDownload(el.Href); ok {
		t.Track(models.EventTypeDownload, map[string]interface{}{
			"file_name": name,
			"file_type": ext,
			"href":      el.Href,
		})
	}
}

func (t *Tracker) handleScroll() {
	t.activity.Touch()

	t.mu.Lock()
	if t.scrollTimer != nil {
		t.scrollTimer.Stop()
	}
	t.scrollTimer = t.clock.AfterFunc(t.cfg.ScrollDebounce, t.emitScroll)
	t.mu.Unlock()
}

func (t *Tracker) emitScroll() {
	t.mu.Lock()
	t.scrollTimer = nil
	t.mu.Unlock()

	pct := t.page.ScrollPercent()
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	t.Track(models.EventTypeScroll, map[string]interface{}{"scroll_percentage": pct})
}

func (t *Tracker) handleSubmit(form FormInfo) {
	t.Track(models.EventTypeFormSubmit, map[string]interface{}{
		"form_id": form.ID,
		"action":  form.Action,
		"method":  form.Method,
	})
}

func (t *Tracker) handleVisibility(hidden bool) {
	if hidden {
		t.activity.Hide()
		// Hidden doubles as an unload fallback on browsers that never
		// fire pagehide: get everything out while we still can.
		t.batcher.Flush(true)
		return
	}
	t.activity.Show()
}

func classifyElement(el ElementInfo) string {
	tag := strings.ToLower(el.Tag)
	switch {
	case tag == "a" || el.Href != "":
		return "link"
	case formTags[tag]:
		return "form"
	case tag != "":
		return tag
	default:
		return "other"
	}
}

// classifyDownload reports the file name and lowercased type when href
// points at one of the known document extensions.
func classifyDownload(href string) (name, ext string, ok bool) {
	if href == "" {
		return "", "", false
	}
	p := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	ext = strings.ToLower(strings.TrimPrefix(path.Ext(base), "."))
	if ext == "" || !downloadExtensions[ext] {
		return "", "", false
	}
	return base, ext, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// blankPage is the best-effort PageReader used when the embedding has no
// page context at all.
type blankPage struct{}

func (blankPage) Page() models.PageInfo { return models.PageInfo{} }
func (blankPage) Viewport() (int, int)  { return 0, 0 }
func (blankPage) UserAgent() string     { return "" }
func (blankPage) ScrollPercent() int    { return 0 }
