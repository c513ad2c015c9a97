// Package websites manages the website registry and the per-website event
// stores behind the dashboard read models: which sites exist, which
// origins may post events for them, and where their events live.
package websites

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitelens/models"
)

// Manager owns the registry file and the per-website realtime caches.
type Manager struct {
	path    string // registry file
	dataDir string // root of the file-per-event store
	data    *registry
	caches  map[string]*EventCache

	dataMu   sync.RWMutex // protects data
	cachesMu sync.RWMutex // protects caches
}

type registry struct {
	Websites map[string]*Website `json:"websites"`
}

// Website is one registered site. The API key authorizes administrative
// calls for the site; event collection is authorized by origin instead,
// because the tracking snippet cannot carry a secret.
type Website struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Domain         string    `json:"domain"`
	APIKey         string    `json:"api_key"`
	AllowedOrigins []string  `json:"allowed_origins,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewManager loads the registry at path, creating an empty one if absent.
// Event files are written under dataDir.
func NewManager(path, dataDir string) (*Manager, error) {
	m := &Manager{
		path:    path,
		dataDir: dataDir,
		data: &registry{
			Websites: make(map[string]*Website),
		},
		caches: make(map[string]*EventCache),
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			if err := m.save(); err != nil {
				return nil, fmt.Errorf("create registry file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("load website registry: %w", err)
		}
	}

	return m, nil
}

func (m *Manager) load() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, &m.data)
}

// save is only called while dataMu is held for writing.
func (m *Manager) save() error {
	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.WriteFile(m.path, raw, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// CreateWebsite registers a site. The id is derived from the name so
// re-registering the same site is detected instead of duplicated.
func (m *Manager) CreateWebsite(name, domain string, allowedOrigins []string) (*Website, error) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()

	hash := sha256.Sum256([]byte(name))
	id := fmt.Sprintf("web_%x", hash[:4])

	if _, exists := m.data.Websites[id]; exists {
		return nil, fmt.Errorf("website with name %s already exists (ID: %s)", name, id)
	}

	apiKey, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to create API key: %w", err)
	}

	site := &Website{
		ID:             id,
		Name:           name,
		Domain:         domain,
		APIKey:         apiKey.String(),
		AllowedOrigins: allowedOrigins,
		CreatedAt:      time.Now().UTC(),
	}
	m.data.Websites[id] = site

	if err := m.save(); err != nil {
		delete(m.data.Websites, id) // roll back on save failure
		return nil, fmt.Errorf("save website: %w", err)
	}

	return site, nil
}

// GetWebsite returns the site with the given id.
func (m *Manager) GetWebsite(id string) (*Website, error) {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()

	site, ok := m.data.Websites[id]
	if !ok {
		return nil, fmt.Errorf("unknown website id")
	}
	return site, nil
}

// GetWebsiteByAPIKey resolves a site from its admin API key.
func (m *Manager) GetWebsiteByAPIKey(apiKey string) (*Website, error) {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()

	for _, site := range m.data.Websites {
		if site.APIKey == apiKey {
			return site, nil
		}
	}
	return nil, fmt.Errorf("invalid API key")
}

// ListWebsites returns all registered sites.
func (m *Manager) ListWebsites() []*Website {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()

	sites := make([]*Website, 0, len(m.data.Websites))
	for _, site := range m.data.Websites {
		sites = append(sites, site)
	}
	return sites
}

// DeleteWebsite removes a site from the registry. Stored events are left
// on disk.
func (m *Manager) DeleteWebsite(id string) error {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()

	site, ok := m.data.Websites[id]
	if !ok {
		return fmt.Errorf("unknown website id")
	}
	delete(m.data.Websites, id)

	if err := m.save(); err != nil {
		m.data.Websites[id] = site // roll back on save failure
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// OriginAllowed reports whether origin may post events for the site. An
// empty allowlist admits any origin.
func (site *Website) OriginAllowed(origin string) bool {
	if len(site.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range site.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// AddEvent feeds an enriched event into the site's realtime cache.
func (m *Manager) AddEvent(event *models.Event) {
	m.cachesMu.Lock()
	defer m.cachesMu.Unlock()

	cache, ok := m.caches[event.WebsiteID]
	if !ok {
		cache = NewEventCache()
		m.caches[event.WebsiteID] = cache
	}
	cache.Add(event)
}

// SaveEvent persists an event as <dataDir>/<websiteID>/<yyyymmdd>/<eventID>.json.
func (m *Manager) SaveEvent(event *models.Event) error {
	dateStr := event.Timestamp.UTC().Format("20060102")
	filePath := filepath.Join(m.dataDir, event.WebsiteID, dateStr, fmt.Sprintf("%s.json", event.EventID))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("create directories for %s: %w", filePath, err)
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("save event to %s: %w", filePath, err)
	}
	return nil
}
