package websites

import (
	"sync"
	"time"

	"sitelens/models"
)

const (
	// CacheWindowMinutes is the realtime window the cache can answer for.
	CacheWindowMinutes = 30
)

// EventCache keeps the last CacheWindowMinutes of events in a circular
// buffer of one-minute buckets, serving the realtime read path without
// touching disk.
type EventCache struct {
	buckets      [CacheWindowMinutes][]models.Event
	currentIndex int
	lastMinute   time.Time
	stop         chan struct{}
	mu           sync.RWMutex
}

// NewEventCache creates a cache and starts its minute-advance loop.
func NewEventCache() *EventCache {
	cache := &EventCache{
		lastMinute: time.Now().UTC().Truncate(time.Minute),
		stop:       make(chan struct{}),
	}
	go cache.advance()
	return cache
}

// Close stops the advance loop.
func (c *EventCache) Close() {
	close(c.stop)
}

// Add places an event in the bucket for its timestamp's minute. Events
// older than the window are discarded; events from the future land in the
// current bucket.
func (c *EventCache) Add(event *models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	eventMinute := event.Timestamp.UTC().Truncate(time.Minute)
	if eventMinute.Before(c.lastMinute.Add(-(CacheWindowMinutes - 1) * time.Minute)) {
		return
	}
	if eventMinute.After(c.lastMinute) {
		eventMinute = c.lastMinute
	}

	diffMinutes := int(c.lastMinute.Sub(eventMinute) / time.Minute)
	index := (c.currentIndex - diffMinutes + CacheWindowMinutes) % CacheWindowMinutes
	c.buckets[index] = append(c.buckets[index], *event)
}

// EventsSince returns the cached events at or after startMinutes
// (minutes since epoch).
func (c *EventCache) EventsSince(startMinutes int64) []models.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventsSinceLocked(startMinutes)
}

func (c *EventCache) eventsSinceLocked(startMinutes int64) []models.Event {
	var events []models.Event
	cacheLastMinutes := toMinutesSinceEpoch(c.lastMinute)

	for i := 0; i < CacheWindowMinutes; i++ {
		bucketIndex := (c.currentIndex - i + CacheWindowMinutes) % CacheWindowMinutes
		bucketMinutes := cacheLastMinutes - int64(i)
		if bucketMinutes < startMinutes {
			continue
		}
		for _, event := range c.buckets[bucketIndex] {
			if toMinutesSinceEpoch(event.Timestamp) >= startMinutes {
				events = append(events, event)
			}
		}
	}
	return events
}

// advance shifts the buffer every minute, evicting the oldest bucket.
func (c *EventCache) advance() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.currentIndex = (c.currentIndex + 1) % CacheWindowMinutes
			c.buckets[c.currentIndex] = nil
			c.lastMinute = c.lastMinute.Add(time.Minute)
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func toMinutesSinceEpoch(t time.Time) int64 {
	return t.Unix() / 60
}

func fromMinutesSinceEpoch(minutes int64) time.Time {
	return time.Unix(minutes*60, 0).UTC()
}
