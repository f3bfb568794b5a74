package poller

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/readings"
	"github.com/kawaltani/kawaltani/internal/status"
	"github.com/kawaltani/kawaltani/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, time.UTC)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

type fakeDashboards struct {
	view  *farm.DashboardView
	err   error
	calls int
}

func (f *fakeDashboards) Dashboard(ctx context.Context, siteID string) (*farm.DashboardView, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v := *f.view
	v.SiteID = siteID
	return &v, nil
}

type fakeSession struct {
	loggedIn bool
	site     string
}

func (f fakeSession) LoggedIn() bool { return f.loggedIn }
func (f fakeSession) SiteID() string { return f.site }

func TestPoll_Skipped(t *testing.T) {
	tests := []struct {
		name string
		sess fakeSession
	}{
		{"logged out", fakeSession{site: "S1"}},
		{"no site", fakeSession{loggedIn: true}},
		{"undefined site", fakeSession{loggedIn: true, site: "undefined"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := setupTestStore(t)
			d := &fakeDashboards{view: &farm.DashboardView{}}
			p := New(st, d, tt.sess, time.Minute)

			if err := p.Poll(context.Background()); !errors.Is(err, ErrSkipped) {
				t.Fatalf("expected ErrSkipped, got %v", err)
			}
			if d.calls != 0 {
				t.Error("expected no fetch")
			}
			runs, _ := st.RecentPollRuns(5)
			if len(runs) != 0 {
				t.Errorf("expected no run recorded, got %d", len(runs))
			}
		})
	}
}

func TestPoll_RecordsRunAndWarnings(t *testing.T) {
	st := setupTestStore(t)
	view := &farm.DashboardView{
		Soil: readings.Group([]models.SensorReading{
			{Key: "soil_ph1", Label: "pH 1", Status: status.Danger},
			{Key: "soil_nitro1", Label: "N 1"},
		}),
		Warnings: []models.Warning{{SensorLabel: "pH 1", StatusMessage: "asam", ActionMessage: "-", Severity: status.Danger}},
	}
	p := New(st, &fakeDashboards{view: view}, fakeSession{loggedIn: true, site: "S1"}, time.Minute)

	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	runs, err := st.RecentPollRuns(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if !r.Success || !r.DashboardOK || !r.RealtimeOK || r.Readings.Int64 != 2 || r.Warnings.Int64 != 1 {
		t.Errorf("unexpected run %+v", r)
	}

	events, err := st.ActiveWarnings("S1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Warning.Severity != status.Danger {
		t.Errorf("unexpected warning log %+v", events)
	}

	latest, ok := p.Latest("S1")
	if !ok || len(latest.Warnings) != 1 {
		t.Error("expected latest view for S1")
	}
	if _, ok := p.Latest("S2"); ok {
		t.Error("expected no latest view for another site")
	}
}

func TestPoll_Failure(t *testing.T) {
	st := setupTestStore(t)
	p := New(st, &fakeDashboards{err: backend.ErrUnauthorized}, fakeSession{loggedIn: true, site: "S1"}, time.Minute)

	if err := p.Poll(context.Background()); !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	runs, _ := st.RecentPollRuns(5)
	if len(runs) != 1 || runs[0].Success || !runs[0].ErrorMessage.Valid {
		t.Errorf("expected failed run recorded, got %+v", runs)
	}
	if _, err := p.Status(); err == nil {
		t.Error("expected last error")
	}
}

func TestPoll_PartialFailure(t *testing.T) {
	st := setupTestStore(t)
	view := &farm.DashboardView{RealtimeErr: backend.ErrNetwork}
	p := New(st, &fakeDashboards{view: view}, fakeSession{loggedIn: true, site: "S1"}, time.Minute)

	err := p.Poll(context.Background())
	if !errors.Is(err, backend.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	runs, _ := st.RecentPollRuns(5)
	if len(runs) != 1 || runs[0].Success || !runs[0].DashboardOK || runs[0].RealtimeOK {
		t.Errorf("unexpected run %+v", runs)
	}
	if _, ok := p.Latest("S1"); !ok {
		t.Error("partial view should still be kept")
	}
}

func TestDelay_BacksOffAfterFailure(t *testing.T) {
	p := New(setupTestStore(t), &fakeDashboards{}, fakeSession{}, time.Minute)

	if d := p.delay(nil); d != time.Minute {
		t.Errorf("expected interval after success, got %v", d)
	}
	if d := p.delay(ErrSkipped); d != time.Minute {
		t.Errorf("expected interval after skip, got %v", d)
	}
	first := p.delay(backend.ErrNetwork)
	if first <= 0 || first >= time.Minute {
		t.Errorf("expected shorter retry after failure, got %v", first)
	}
	for range 20 {
		if d := p.delay(backend.ErrNetwork); d > time.Minute {
			t.Fatalf("delay %v exceeds interval", d)
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := New(setupTestStore(t), &fakeDashboards{}, fakeSession{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
