package session_test

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kawaltani/kawaltani/internal/session"
	"github.com/kawaltani/kawaltani/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db, time.UTC)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestManager_PersistsAcrossLoads(t *testing.T) {
	t.Parallel()
	st := setupTestStore(t)

	m, err := session.Load(st)
	if err != nil {
		t.Fatal(err)
	}
	if m.LoggedIn() {
		t.Fatal("new session should not be logged in")
	}

	user := json.RawMessage(`{"user_id":7,"user_name":"petani"}`)
	if err := m.SetCredentials("tok", user); err != nil {
		t.Fatal(err)
	}
	if err := m.SelectSite("S1"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := session.Load(st)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.LoggedIn() || reloaded.Token() != "tok" || reloaded.SiteID() != "S1" {
		t.Errorf("session not restored: token=%q site=%q", reloaded.Token(), reloaded.SiteID())
	}
	if u := reloaded.User(); u.Name != "petani" || u.ID != "7" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestManager_LoggedInNeedsUser(t *testing.T) {
	t.Parallel()
	m, err := session.Load(setupTestStore(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetCredentials("tok", nil); err != nil {
		t.Fatal(err)
	}
	if m.LoggedIn() {
		t.Error("token without user should not count as logged in")
	}
}

func TestManager_ExpireKeepsSite(t *testing.T) {
	t.Parallel()
	st := setupTestStore(t)
	m, _ := session.Load(st)
	m.SetCredentials("tok", json.RawMessage(`{}`))
	m.SelectSite("S1")

	m.Expire()

	if m.LoggedIn() || m.Token() != "" {
		t.Error("expected credentials cleared")
	}
	if m.SiteID() != "S1" {
		t.Errorf("expected site kept, got %q", m.SiteID())
	}
	reloaded, _ := session.Load(st)
	if reloaded.Token() != "" || reloaded.SiteID() != "S1" {
		t.Error("expiry should be persisted")
	}
}

func TestManager_ClearDropsEverything(t *testing.T) {
	t.Parallel()
	st := setupTestStore(t)
	m, _ := session.Load(st)
	m.SetCredentials("tok", json.RawMessage(`{}`))
	m.SelectSite("S1")

	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	reloaded, _ := session.Load(st)
	if reloaded.Token() != "" || reloaded.SiteID() != "" {
		t.Error("expected cleared session after reload")
	}
}

func TestManager_InvalidSiteIgnored(t *testing.T) {
	t.Parallel()
	m, _ := session.Load(setupTestStore(t))
	for _, id := range []string{"undefined", "null", ""} {
		m.SelectSite(id)
		if m.SiteID() != "" {
			t.Errorf("SelectSite(%q) should clear the selection, got %q", id, m.SiteID())
		}
	}
}
