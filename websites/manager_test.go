package websites

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "websites.json"), filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestCreateWebsite(t *testing.T) {
	m := newTestManager(t)

	site, err := m.CreateWebsite("Example", "example.com", []string{"https://example.com"})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(site.ID, "web_") {
		t.Errorf("expected a web_ prefixed id, got %q", site.ID)
	}
	if site.APIKey == "" {
		t.Error("expected an API key")
	}
	if site.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCreateWebsiteDuplicateName(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.CreateWebsite("Example", "example.com", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateWebsite("Example", "other.com", nil); err == nil {
		t.Error("expected an error for a duplicate name")
	}
}

func TestGetWebsite(t *testing.T) {
	m := newTestManager(t)
	site, _ := m.CreateWebsite("Example", "example.com", nil)

	got, err := m.GetWebsite(site.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Example" {
		t.Errorf("unexpected website %+v", got)
	}

	if _, err := m.GetWebsite("web_nope"); err == nil {
		t.Error("expected an error for an unknown id")
	}
}

func TestGetWebsiteByAPIKey(t *testing.T) {
	m := newTestManager(t)
	site, _ := m.CreateWebsite("Example", "example.com", nil)

	got, err := m.GetWebsiteByAPIKey(site.APIKey)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != site.ID {
		t.Errorf("expected %s, got %s", site.ID, got.ID)
	}

	if _, err := m.GetWebsiteByAPIKey("bogus"); err == nil {
		t.Error("expected an error for an invalid key")
	}
}

func TestDeleteWebsite(t *testing.T) {
	m := newTestManager(t)
	site, _ := m.CreateWebsite("Example", "example.com", nil)

	if err := m.DeleteWebsite(site.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetWebsite(site.ID); err == nil {
		t.Error("expected the website to be gone")
	}
	if err := m.DeleteWebsite(site.ID); err == nil {
		t.Error("expected an error deleting twice")
	}
}

func TestRegistryPersistsAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "websites.json")

	m1, err := NewManager(path, filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	site, _ := m1.CreateWebsite("Example", "example.com", nil)

	m2, err := NewManager(path, filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := m2.GetWebsite(site.ID)
	if err != nil {
		t.Fatalf("expected the website to survive a reload: %v", err)
	}
	if got.APIKey != site.APIKey {
		t.Error("expected the API key to persist")
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		expect  bool
	}{
		{"empty allowlist admits anyone", nil, "https://anywhere.com", true},
		{"listed origin", []string{"https://example.com"}, "https://example.com", true},
		{"unlisted origin", []string{"https://example.com"}, "https://evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := &Website{AllowedOrigins: tt.origins}
			if got := site.OriginAllowed(tt.origin); got != tt.expect {
				t.Errorf("OriginAllowed(%q) = %v, want %v", tt.origin, got, tt.expect)
			}
		})
	}
}
