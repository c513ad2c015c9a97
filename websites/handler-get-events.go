package websites

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"sitelens/models"
)

// RealtimeEventsHandler serves GET /websites/{websiteID}/events.
// It answers from the per-site cache when the requested window allows,
// falling back to a disk scan otherwise.
func (m *Manager) RealtimeEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		websiteID := chi.URLParam(r, "websiteID")
		if _, err := m.GetWebsite(websiteID); err != nil {
			http.Error(w, "Website not found", http.StatusNotFound)
			return
		}

		startMinutes, err := parseStartMinutes(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		events, err := m.getEvents(websiteID, startMinutes)
		if err != nil {
			log.Error().Err(err).Str("website_id", websiteID).Msg("get events failed")
			http.Error(w, "Failed to get events", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(events); err != nil {
			log.Error().Err(err).Msg("encode events response")
		}
	}
}

func parseStartMinutes(r *http.Request) (int64, error) {
	// Default: the full cache window.
	startMinutes := toMinutesSinceEpoch(time.Now().UTC()) - CacheWindowMinutes

	if startStr := r.URL.Query().Get("start-minutes-since-epoch"); startStr != "" {
		parsed, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid start-minutes-since-epoch format")
		}
		startMinutes = parsed
	}
	return startMinutes, nil
}

func (m *Manager) getEvents(websiteID string, startMinutes int64) ([]models.Event, error) {
	if events, found := m.getEventsFromCache(websiteID, startMinutes); found {
		return events, nil
	}
	return m.getEventsFromDisk(websiteID, startMinutes)
}

func (m *Manager) getEventsFromCache(websiteID string, startMinutes int64) ([]models.Event, bool) {
	m.cachesMu.RLock()
	cache, exists := m.caches[websiteID]
	m.cachesMu.RUnlock()

	if !exists {
		return nil, false
	}

	cache.mu.RLock()
	defer cache.mu.RUnlock()

	cacheLastMinutes := toMinutesSinceEpoch(cache.lastMinute)
	cacheWindowStart := cacheLastMinutes - (CacheWindowMinutes - 1)

	// Miss if the request starts before the window.
	if startMinutes < cacheWindowStart {
		return nil, false
	}
	// Miss if the request is newer than the cache has advanced to, which
	// can happen when the advance loop falls behind real time.
	if startMinutes > cacheLastMinutes {
		log.Debug().
			Int64("start_minutes", startMinutes).
			Int64("cache_last_minutes", cacheLastMinutes).
			Msg("realtime cache behind request, falling back to disk")
		return nil, false
	}

	return cache.eventsSinceLocked(startMinutes), true
}

func (m *Manager) getEventsFromDisk(websiteID string, startMinutes int64) ([]models.Event, error) {
	startTime := fromMinutesSinceEpoch(startMinutes)

	// Empty slice, not nil, so JSON encodes as [] rather than null.
	events := make([]models.Event, 0)
	startDate := startTime.Truncate(24 * time.Hour)
	endDate := time.Now().UTC().Truncate(24 * time.Hour)

	for date := startDate; !date.After(endDate); date = date.Add(24 * time.Hour) {
		dayEvents, err := m.getEventsFromDay(websiteID, date, startMinutes)
		if err != nil {
			return nil, err
		}
		events = append(events, dayEvents...)
	}
	return events, nil
}

func (m *Manager) getEventsFromDay(websiteID string, date time.Time, startMinutes int64) ([]models.Event, error) {
	dir := filepath.Join(m.dataDir, websiteID, date.Format("20060102"))
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []models.Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	if len(files) > 10000 {
		return nil, fmt.Errorf("too many files in %s, please narrow time range", dir)
	}

	events := make([]models.Event, 0)
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		event, err := readEventFile(filepath.Join(dir, file.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("skipping unreadable event file")
			continue
		}

		if toMinutesSinceEpoch(event.Timestamp) >= startMinutes {
			events = append(events, event)
		}
	}
	return events, nil
}

func readEventFile(filePath string) (models.Event, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return models.Event{}, err
	}

	var event models.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return models.Event{}, err
	}
	return event, nil
}
