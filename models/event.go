package models

import (
	"time"
)

// EventType constants. These are the only values the collector accepts.
const (
	EventTypePageView   = "page_view"
	EventTypeClick      = "click"
	EventTypeScroll     = "scroll"
	EventTypeFormSubmit = "form_submit"
	EventTypeDownload   = "download"
	EventTypeDuration   = "duration"
	EventTypeIdentify   = "identify"
	EventTypeCustom     = "custom"
	EventTypeGoal       = "goal"
)

// ValidEventTypes is the set of event types accepted on the wire.
var ValidEventTypes = map[string]bool{
	EventTypePageView:   true,
	EventTypeClick:      true,
	EventTypeScroll:     true,
	EventTypeFormSubmit: true,
	EventTypeDownload:   true,
	EventTypeDuration:   true,
	EventTypeIdentify:   true,
	EventTypeCustom:     true,
	EventTypeGoal:       true,
}

// Event is a single recorded interaction or state observation.
// The agent fills everything except EventID and Location, which are
// assigned server-side when the batch is received.
type Event struct {
	EventID    string                 `json:"event_id,omitempty"`
	WebsiteID  string                 `json:"website_id"`
	SessionID  string                 `json:"session_id"`
	EventType  string                 `json:"event_type"`
	Timestamp  time.Time              `json:"timestamp"`
	Page       PageInfo               `json:"page"`
	Device     DeviceInfo             `json:"device"`
	Location   *LocationInfo          `json:"location,omitempty"`
	CustomData map[string]interface{} `json:"custom_data,omitempty"`
}

// PageInfo is a point-in-time snapshot of the page context,
// recomputed for every event.
type PageInfo struct {
	URL      string `json:"url"`
	Referrer string `json:"referrer"`
	Title    string `json:"title"`
	Path     string `json:"path"`
	Search   string `json:"search"`
	Hash     string `json:"hash"`
}

// DeviceInfo describes the device the event originated from.
// Type is one of "mobile", "tablet" or "desktop".
type DeviceInfo struct {
	Type      string   `json:"type"`
	UserAgent string   `json:"user_agent"`
	Viewport  Viewport `json:"viewport"`
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LocationInfo is filled server-side from the request.
type LocationInfo struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// Batch is the wire format of a collection request: POST {apiUrl}/batch.
type Batch struct {
	Events []Event `json:"events"`
}
