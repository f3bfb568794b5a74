package session

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/kawaltani/kawaltani/internal/models"
)

// Persisted keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
	KeySite  = "selectedSiteId"
)

// Store persists session values between runs.
type Store interface {
	SessionValues() (map[string]string, error)
	SetSessionValues(values map[string]string) error
	DeleteSessionValues(keys ...string) error
}

// Manager is the process-wide authentication context: the bearer token, the
// logged-in user and the selected site. It is safe for concurrent use.
type Manager struct {
	store Store

	mu     sync.RWMutex
	token  string
	user   json.RawMessage
	siteID string
}

// Load restores the session persisted in store.
func Load(store Store) (*Manager, error) {
	values, err := store.SessionValues()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	m := &Manager{
		store:  store,
		token:  values[KeyToken],
		siteID: values[KeySite],
	}
	if !ValidSite(m.siteID) {
		m.siteID = ""
	}
	if u := values[KeyUser]; u != "" {
		m.user = json.RawMessage(u)
	}
	return m, nil
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// LoggedIn requires both a token and a user.
func (m *Manager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && len(m.user) > 0
}

// User decodes the stored user. The zero User is returned when none is stored
// or it cannot be decoded.
func (m *Manager) User() models.User {
	m.mu.RLock()
	raw := m.user
	m.mu.RUnlock()

	var u models.User
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &u); err != nil {
			log.Printf("session: decode user: %v", err)
		}
	}
	return u
}

// SiteID returns the selected site, or "" when none is selected.
func (m *Manager) SiteID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.siteID
}

// SetCredentials stores the result of a successful login.
func (m *Manager) SetCredentials(token string, user json.RawMessage) error {
	if err := m.store.SetSessionValues(map[string]string{
		KeyToken: token,
		KeyUser:  string(user),
	}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.mu.Lock()
	m.token = token
	m.user = user
	m.mu.Unlock()
	return nil
}

// SelectSite stores the selected site.
func (m *Manager) SelectSite(siteID string) error {
	if !ValidSite(siteID) {
		siteID = ""
	}
	if err := m.store.SetSessionValues(map[string]string{KeySite: siteID}); err != nil {
		return fmt.Errorf("save site: %w", err)
	}
	m.mu.Lock()
	m.siteID = siteID
	m.mu.Unlock()
	return nil
}

// Expire drops the token and user after the backend rejected them. The
// selected site is kept.
func (m *Manager) Expire() {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
	if err := m.store.DeleteSessionValues(KeyToken, KeyUser); err != nil {
		log.Printf("session: expire: %v", err)
	}
}

// Clear drops everything, including the selected site, as on logout.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.siteID = ""
	m.mu.Unlock()
	if err := m.store.DeleteSessionValues(KeyToken, KeyUser, KeySite); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ValidSite reports whether siteID names a site. The literal strings
// "undefined" and "null" count as no selection.
func ValidSite(siteID string) bool {
	return siteID != "" && siteID != "undefined" && siteID != "null"
}
