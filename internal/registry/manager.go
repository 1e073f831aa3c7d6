package registry

import (
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/zerverless/versionindex/internal/store"
)

// MaxCachedApps bounds the registries a Manager keeps. Registries for
// further apps are built per call.
const MaxCachedApps = 256

var appIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidAppID reports whether appID can namespace store keys.
func ValidAppID(appID string) bool {
	return appIDPattern.MatchString(appID)
}

// Manager hands out one Registry per application, all sharing a store.
type Manager struct {
	mu         sync.Mutex
	registries map[string]*Registry
	template   Options

	// closer is set only when the manager opened the store itself.
	closer io.Closer
}

// NewManager opens the shared store (unless template.Client is set) and
// uses template for every registry it creates. template.AppID is ignored.
func NewManager(template Options) (*Manager, error) {
	if template.Connection == nil {
		return nil, &ConfigError{Field: "connection"}
	}

	m := &Manager{
		registries: make(map[string]*Registry),
		template:   template,
	}

	if m.template.Client == nil {
		client, err := store.Open(*template.Connection)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		m.template.Client = client
		if c, ok := client.(io.Closer); ok {
			m.closer = c
		}
	}

	return m, nil
}

// Get returns the registry for appID, creating it if needed. An empty
// appID selects DefaultAppID.
func (m *Manager) Get(appID string) (*Registry, error) {
	if appID == "" {
		appID = DefaultAppID
	}
	if !ValidAppID(appID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAppID, appID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.registries[appID]; ok {
		return r, nil
	}

	opts := m.template
	opts.AppID = appID
	r, err := New(opts)
	if err != nil {
		return nil, fmt.Errorf("create registry for %s: %w", appID, err)
	}

	if len(m.registries) < MaxCachedApps {
		m.registries[appID] = r
	}
	return r, nil
}

// AppIDs lists the cached applications.
func (m *Manager) AppIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.registries))
	for id := range m.registries {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) VersionCount() int {
	if m.template.VersionCount <= 0 {
		return DefaultVersionCount
	}
	return m.template.VersionCount
}

// Close closes the shared store if the manager opened it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registries = make(map[string]*Registry)
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}
