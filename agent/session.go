package agent

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSessionTimeout is how long a session id stays valid after it was
// minted.
const DefaultSessionTimeout = 30 * time.Minute

const sessionKeyPrefix = "sitelens_session_"

type sessionRecord struct {
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds at mint time
}

// SessionStore hands out a stable session id per website id for the
// lifetime of the session timeout window. A read hit does NOT refresh the
// stored timestamp: a session expires a fixed window after it was minted,
// no matter how recently it was read.
//
// If the backing Storage errors, the store degrades silently to an
// in-process map for the rest of the agent's lifetime.
type SessionStore struct {
	storage Storage
	timeout time.Duration
	clock   Clock
	log     zerolog.Logger

	mu       sync.Mutex
	degraded bool
	fallback map[string]sessionRecord
}

func NewSessionStore(storage Storage, timeout time.Duration, clock Clock, log zerolog.Logger) *SessionStore {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionStore{
		storage:  storage,
		timeout:  timeout,
		clock:    clock,
		log:      log,
		fallback: make(map[string]sessionRecord),
	}
}

// GetOrCreate returns the current session id for websiteID, minting a new
// one when no valid record exists. It never fails: storage errors flip the
// store into degraded in-memory mode.
func (s *SessionStore) GetOrCreate(websiteID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKeyPrefix + websiteID
	now := s.clock.Now()

	if rec, ok := s.read(key); ok {
		age := now.Sub(time.UnixMilli(rec.Timestamp))
		if age < s.timeout {
			return rec.SessionID
		}
	}

	rec := sessionRecord{
		SessionID: uuid.Must(uuid.NewV7()).String(),
		Timestamp: now.UnixMilli(),
	}
	s.write(key, rec)
	return rec.SessionID
}

func (s *SessionStore) read(key string) (sessionRecord, bool) {
	if !s.degraded {
		raw, ok, err := s.storage.Get(key)
		if err != nil {
			s.degrade(err)
		} else if !ok {
			return sessionRecord{}, false
		} else {
			var rec sessionRecord
			if jsonErr := json.Unmarshal([]byte(raw), &rec); jsonErr != nil {
				s.log.Debug().Err(jsonErr).Str("key", key).Msg("discarding corrupt session record")
				return sessionRecord{}, false
			}
			return rec, true
		}
	}
	rec, ok := s.fallback[key]
	return rec, ok
}

func (s *SessionStore) write(key string, rec sessionRecord) {
	if !s.degraded {
		raw, err := json.Marshal(rec)
		if err == nil {
			err = s.storage.Set(key, string(raw))
		}
		if err == nil {
			return
		}
		s.degrade(err)
	}
	s.fallback[key] = rec
}

func (s *SessionStore) degrade(err error) {
	s.log.Warn().Err(err).Msg("session storage unavailable, using in-memory session ids")
	s.degraded = true
}
