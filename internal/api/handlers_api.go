package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/readings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode json: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, farm.ErrNoSite), errors.Is(err, farm.ErrMissingFilter):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"message": farm.Notice(err)})
}

// ReadingJSON is one reading in the JSON views.
type ReadingJSON struct {
	Sensor        string  `json:"sensor"`
	Label         string  `json:"sensor_name"`
	Value         float64 `json:"read_value"`
	ReadDate      string  `json:"read_date,omitempty"`
	ValueStatus   string  `json:"value_status"`
	StatusMessage string  `json:"status_message,omitempty"`
	ActionMessage string  `json:"action_message"`
}

// AreaJSON is one area's readings keyed by kind.
type AreaJSON struct {
	Area     int                           `json:"area"`
	Readings map[readings.Kind]ReadingJSON `json:"readings"`
}

func readingJSON(r models.SensorReading) ReadingJSON {
	return ReadingJSON{
		Sensor:        r.Key,
		Label:         r.Label,
		Value:         r.Value,
		ReadDate:      r.RawDate,
		ValueStatus:   r.Status.String(),
		StatusMessage: r.StatusMessage,
		ActionMessage: r.Action(),
	}
}

func areasJSON(rows []readings.Row) []AreaJSON {
	out := make([]AreaJSON, 0, len(rows))
	for _, row := range rows {
		a := AreaJSON{Area: row.Area, Readings: make(map[readings.Kind]ReadingJSON, len(row.Readings))}
		for kind, r := range row.Readings {
			a.Readings[kind] = readingJSON(r)
		}
		out = append(out, a)
	}
	return out
}

type DashboardJSON struct {
	SiteID        string           `json:"site_id"`
	LastUpdated   string           `json:"last_updated"`
	Warnings      []models.Warning `json:"warnings"`
	Soil          []AreaJSON       `json:"soil"`
	DashboardErr  string           `json:"dashboard_error,omitempty"`
	RealtimeErr   string           `json:"realtime_error,omitempty"`
	FetchedAt     time.Time        `json:"fetched_at"`
	FromPollCache bool             `json:"from_poll_cache"`
}

// handleAPIDashboard returns the selected site's dashboard summary. With
// ?cached=1 the poller's latest view is returned when it has one.
func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	siteID, err := s.siteParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var view *farm.DashboardView
	cached := false
	if r.URL.Query().Get("cached") == "1" && s.poller != nil {
		view, cached = s.poller.Latest(siteID)
	}
	if view == nil {
		view, err = s.farm.Dashboard(r.Context(), siteID)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	out := DashboardJSON{
		SiteID:        view.SiteID,
		LastUpdated:   view.Dashboard.LastUpdated,
		Warnings:      view.Warnings,
		Soil:          areasJSON(view.SoilRows()),
		FetchedAt:     view.FetchedAt,
		FromPollCache: cached,
	}
	if out.Warnings == nil {
		out.Warnings = []models.Warning{}
	}
	if view.DashboardErr != nil {
		out.DashboardErr = farm.Notice(view.DashboardErr)
	}
	if view.RealtimeErr != nil {
		out.RealtimeErr = farm.Notice(view.RealtimeErr)
	}
	writeJSON(w, http.StatusOK, out)
}

type RealtimeJSON struct {
	SiteID      string           `json:"site_id"`
	LastUpdated string           `json:"last_updated"`
	Kinds       []readings.Kind  `json:"kinds"`
	Areas       []AreaJSON       `json:"areas"`
	Warnings    []models.Warning `json:"warnings"`
}

func (s *Server) handleAPIRealtime(w http.ResponseWriter, r *http.Request) {
	siteID, err := s.siteParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.farm.Realtime(r.Context(), siteID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := RealtimeJSON{
		SiteID:      view.SiteID,
		LastUpdated: view.LastUpdated,
		Kinds:       view.Grouping.Present(),
		Areas:       areasJSON(view.Rows()),
		Warnings:    view.Grouping.Warnings,
	}
	if out.Warnings == nil {
		out.Warnings = []models.Warning{}
	}
	writeJSON(w, http.StatusOK, out)
}

type ChatGroupJSON struct {
	Category string            `json:"category"`
	Sessions []ChatSessionJSON `json:"sessions"`
}

type ChatSessionJSON struct {
	ID        int64     `json:"id"`
	Title     string    `json:"name_chat"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleAPIChats(w http.ResponseWriter, r *http.Request) {
	cats, err := s.chats.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ChatGroupJSON, 0, 3)
	for _, g := range cats.Groups() {
		group := ChatGroupJSON{Category: string(g.Category), Sessions: make([]ChatSessionJSON, 0, len(g.Sessions))}
		for _, cs := range g.Sessions {
			group.Sessions = append(group.Sessions, ChatSessionJSON{ID: cs.ID, Title: cs.Title, CreatedAt: cs.CreatedAt.In(s.loc)})
		}
		out = append(out, group)
	}
	writeJSON(w, http.StatusOK, out)
}

type WarningEventJSON struct {
	models.Warning
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// MarshalJSON keeps the embedded warning's fields alongside the times.
func (e WarningEventJSON) MarshalJSON() ([]byte, error) {
	var fields map[string]any
	raw, err := json.Marshal(e.Warning)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["first_seen_at"] = e.FirstSeenAt
	fields["last_seen_at"] = e.LastSeenAt
	return json.Marshal(fields)
}

// handleAPIWarnings returns the warning log for the selected site.
func (s *Server) handleAPIWarnings(w http.ResponseWriter, r *http.Request) {
	siteID, err := s.siteParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	maxAge := warningLogAge
	if d, err := time.ParseDuration(r.URL.Query().Get("since")); err == nil && d > 0 {
		maxAge = d
	}
	events, err := s.store.ActiveWarnings(siteID, maxAge)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	out := make([]WarningEventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, WarningEventJSON{Warning: e.Warning, FirstSeenAt: e.FirstSeenAt, LastSeenAt: e.LastSeenAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// siteParam returns ?site_id when given, otherwise the selected site.
func (s *Server) siteParam(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("site_id"); id != "" {
		return id, nil
	}
	return s.farm.SelectedSite(r.Context())
}

type HealthStatus struct {
	Status           string    `json:"status"`
	LoggedIn         bool      `json:"logged_in"`
	SiteID           string    `json:"site_id,omitempty"`
	MigrationVersion int       `json:"migration_version"`
	LastPoll         time.Time `json:"last_poll,omitzero"`
	LastPollError    string    `json:"last_poll_error,omitempty"`
	PollFailures24h  int       `json:"poll_failures_24h"`
	AdvisorEnabled   bool      `json:"advisor_enabled"`
	Errors           []string  `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:   "ok",
		LoggedIn: s.session.LoggedIn(),
		SiteID:   s.session.SiteID(),
	}

	version, err := s.store.MigrationVersion()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	health.MigrationVersion = version
	health.AdvisorEnabled = s.advisor != nil && s.advisor.Enabled()

	if s.poller != nil {
		last, pollErr := s.poller.Status()
		health.LastPoll = last
		if pollErr != nil {
			health.LastPollError = pollErr.Error()
			health.Status = "degraded"
		}
	}
	summaries, err := s.store.GetPollHealth(1)
	if err != nil {
		health.Errors = append(health.Errors, "poll health: "+err.Error())
	}
	for _, sum := range summaries {
		health.PollFailures24h += sum.FailedRuns
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
	}
	writeJSON(w, http.StatusOK, health)
}
