// Package collector implements the collection endpoint consumed by the
// tracking agent: POST {apiUrl}/batch.
package collector

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sitelens/models"
	"sitelens/websites"
)

// MaxTimestampDrift is the maximum allowed difference between an event
// timestamp and server time. Events outside this range are corrected to
// server time.
const MaxTimestampDrift = 5 * time.Minute

// Publisher receives every accepted event, e.g. the live websocket hub.
type Publisher interface {
	Publish(event models.Event)
}

// Collector validates, enriches and stores incoming event batches.
type Collector struct {
	sites *websites.Manager
	pub   Publisher // may be nil
}

func New(sites *websites.Manager, pub Publisher) *Collector {
	return &Collector{
		sites: sites,
		pub:   pub,
	}
}

// BatchHandler serves POST /batch. The whole batch is rejected when any
// event fails validation; the agent sends no partial batches, so partial
// acceptance would only hide bugs.
func (c *Collector) BatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		var batch models.Batch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			log.Warn().Err(err).Str("client_ip", clientIP).Msg("batch decode failed")
			http.Error(w, "Invalid JSON format", http.StatusBadRequest)
			return
		}
		if len(batch.Events) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		origin := r.Header.Get("Origin")
		for i := range batch.Events {
			event := &batch.Events[i]

			site, err := c.sites.GetWebsite(event.WebsiteID)
			if err != nil {
				log.Warn().Str("website_id", event.WebsiteID).Str("client_ip", clientIP).Msg("batch for unknown website")
				http.Error(w, "Unknown website id", http.StatusBadRequest)
				return
			}
			if !models.ValidEventTypes[event.EventType] {
				log.Warn().Str("event_type", event.EventType).Str("website_id", site.ID).Msg("invalid event type")
				http.Error(w, "Invalid event type", http.StatusBadRequest)
				return
			}
			if origin != "" && !site.OriginAllowed(origin) {
				log.Warn().Str("origin", origin).Str("website_id", site.ID).Msg("origin not allowed")
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			c.enrichEvent(event, r, clientIP)
		}

		for i := range batch.Events {
			event := &batch.Events[i]
			if err := c.sites.SaveEvent(event); err != nil {
				log.Error().Err(err).Str("event_id", event.EventID).Msg("save event failed")
				http.Error(w, "Failed to store events", http.StatusInternalServerError)
				return
			}
			c.sites.AddEvent(event)
			if c.pub != nil {
				c.pub.Publish(*event)
			}
		}

		log.Debug().Int("events", len(batch.Events)).Str("client_ip", clientIP).Msg("batch accepted")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"received": len(batch.Events),
		})
	}
}

// enrichEvent fills the server-assigned fields: event id, clamped
// timestamp, client location and any device fields the agent left blank.
func (c *Collector) enrichEvent(event *models.Event, r *http.Request, clientIP string) {
	event.EventID = uuid.Must(uuid.NewV7()).String()

	serverNow := time.Now().UTC()
	if event.Timestamp.IsZero() {
		event.Timestamp = serverNow
	} else if drift := event.Timestamp.Sub(serverNow); drift > MaxTimestampDrift || drift < -MaxTimestampDrift {
		log.Debug().
			Dur("drift", drift).
			Time("original", event.Timestamp).
			Msg("event timestamp out of range, correcting to server time")
		event.Timestamp = serverNow
	}

	if event.Location == nil {
		event.Location = &models.LocationInfo{
			IP: clientIP,
			// TODO: GeoIP lookup for country/region/city
		}
	}

	if event.Device.UserAgent == "" {
		event.Device.UserAgent = r.UserAgent()
	}
	if event.Page.Referrer == "" {
		event.Page.Referrer = r.Referer()
	}
}

// CORS answers preflight requests and reflects the Origin header. The
// tracking snippet posts cross-origin and navigator.sendBeacon cannot
// carry custom headers, so per-website origin enforcement happens in the
// batch handler where the website is known, not here.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	return ip
}
