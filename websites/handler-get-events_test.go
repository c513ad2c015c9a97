package websites

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"sitelens/models"
)

func writeEventFile(t *testing.T, dataDir string, event models.Event) {
	t.Helper()
	dir := filepath.Join(dataDir, event.WebsiteID, event.Timestamp.UTC().Format("20060102"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, event.EventID+".json"), raw, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGetEventsPrefersCache(t *testing.T) {
	m := newTestManager(t)
	baseTime := time.Date(2025, 8, 24, 12, 0, 0, 0, time.UTC)

	cache := testCache(baseTime)
	cache.Add(&models.Event{EventID: "cached-1", WebsiteID: "web_test", Timestamp: baseTime})
	cache.Add(&models.Event{EventID: "cached-2", WebsiteID: "web_test", Timestamp: baseTime.Add(-10 * time.Minute)})
	m.caches["web_test"] = cache

	events, err := m.getEvents("web_test", toMinutesSinceEpoch(baseTime.Add(-15*time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 cached events, got %d", len(events))
	}
}

func TestGetEventsFallsBackToDisk(t *testing.T) {
	m := newTestManager(t)
	baseTime := time.Now().UTC()

	// An event older than the cache window only exists on disk.
	old := models.Event{
		EventID:   "disk-1",
		WebsiteID: "web_test",
		EventType: models.EventTypePageView,
		Timestamp: baseTime.Add(-40 * time.Minute),
	}
	writeEventFile(t, m.dataDir, old)

	cache := testCache(baseTime.Truncate(time.Minute))
	cache.Add(&models.Event{EventID: "cached-1", WebsiteID: "web_test", Timestamp: baseTime})
	m.caches["web_test"] = cache

	// Requesting a window older than the cache forces the disk path.
	events, err := m.getEvents("web_test", toMinutesSinceEpoch(baseTime.Add(-45*time.Minute)))
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, ev := range events {
		if ev.EventID == "disk-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the disk event in the result, got %d events", len(events))
	}
}

func TestGetEventsFromDiskFiltersByStart(t *testing.T) {
	m := newTestManager(t)
	baseTime := time.Now().UTC()

	writeEventFile(t, m.dataDir, models.Event{
		EventID: "recent", WebsiteID: "web_test", Timestamp: baseTime.Add(-5 * time.Minute),
	})
	writeEventFile(t, m.dataDir, models.Event{
		EventID: "ancient", WebsiteID: "web_test", Timestamp: baseTime.Add(-3 * time.Hour),
	})

	events, err := m.getEventsFromDisk("web_test", toMinutesSinceEpoch(baseTime.Add(-time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].EventID != "recent" {
		t.Fatalf("expected only the recent event, got %+v", events)
	}
}

func TestRealtimeEventsHandler(t *testing.T) {
	m := newTestManager(t)
	site, err := m.CreateWebsite("Example", "example.com", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Stored the way the collector stores accepted events: disk and cache.
	event := models.Event{
		EventID:   "ev-1",
		WebsiteID: site.ID,
		EventType: models.EventTypePageView,
		Timestamp: time.Now().UTC(),
	}
	if err := m.SaveEvent(&event); err != nil {
		t.Fatal(err)
	}
	m.AddEvent(&event)

	r := chi.NewRouter()
	r.Get("/websites/{websiteID}/events", m.RealtimeEventsHandler())

	tests := []struct {
		name         string
		url          string
		expectStatus int
		expectEvents int
	}{
		{"realtime window", "/websites/" + site.ID + "/events", http.StatusOK, 1},
		{"bad start parameter", "/websites/" + site.ID + "/events?start-minutes-since-epoch=abc", http.StatusBadRequest, 0},
		{"unknown website", "/websites/web_nope/events", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.expectStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.expectStatus)
			}
			if tt.expectStatus != http.StatusOK {
				return
			}

			var events []models.Event
			if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
				t.Fatalf("invalid response JSON: %v", err)
			}
			if len(events) != tt.expectEvents {
				t.Errorf("expected %d events, got %d", tt.expectEvents, len(events))
			}
		})
	}
}
