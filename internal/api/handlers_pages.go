package api

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kawaltani/kawaltani/internal/advisor"
	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/phase"
	"github.com/kawaltani/kawaltani/internal/readings"
	"github.com/kawaltani/kawaltani/internal/store"
)

// warningLogAge is how far back the dashboard's warning log reaches.
const warningLogAge = 24 * time.Hour

type DashboardPage struct {
	Page
	View       *farm.DashboardView
	Nutrients  []readings.Kind
	Growth     *phase.Phase
	Advisory   *advisor.Advisory
	WarningLog []store.WarningEvent
	LastPoll   time.Time
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := DashboardPage{Page: s.page("Dashboard", "dashboard"), Nutrients: readings.NutrientKinds}
	if err := s.withSites(r.Context(), &data.Page); err != nil {
		if unauthorized(w, r, err) {
			return
		}
		log.Printf("api: list sites: %v", err)
		data.Notice = farm.Notice(err)
		s.render(w, "dashboard.html", data)
		return
	}

	view, err := s.farm.Dashboard(r.Context(), data.SiteID)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		data.Notice = farm.Notice(err)
		s.render(w, "dashboard.html", data)
		return
	}
	data.View = view
	switch {
	case view.DashboardErr != nil:
		log.Printf("api: dashboard %s: %v", data.SiteID, view.DashboardErr)
		data.Notice = farm.Notice(view.DashboardErr)
	case view.RealtimeErr != nil:
		log.Printf("api: realtime %s: %v", data.SiteID, view.RealtimeErr)
		data.Notice = farm.Notice(view.RealtimeErr)
	}

	if len(view.Dashboard.Plants) > 0 {
		g := phase.ForAge(view.Dashboard.Plants[0].Age.Float64())
		data.Growth = &g
	}
	if s.advisor != nil && len(view.Warnings) > 0 {
		adv, err := s.advisor.Advise(r.Context(), view.Warnings, data.Growth)
		if err != nil {
			log.Printf("api: advisory: %v", err)
		}
		data.Advisory = &adv
	}
	if events, err := s.store.ActiveWarnings(data.SiteID, warningLogAge); err != nil {
		log.Printf("api: warning log: %v", err)
	} else {
		data.WarningLog = events
	}
	if s.poller != nil {
		data.LastPoll, _ = s.poller.Status()
	}
	s.render(w, "dashboard.html", data)
}

type RealtimePage struct {
	Page
	View *farm.RealtimeView
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	data := RealtimePage{Page: s.page("Realtime", "realtime")}
	err := s.withSites(r.Context(), &data.Page)
	if err == nil {
		data.View, err = s.farm.Realtime(r.Context(), data.SiteID)
	}
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: realtime %s: %v", data.SiteID, err)
		data.Notice = farm.Notice(err)
	}
	s.render(w, "realtime.html", data)
}

type HistoryPage struct {
	Page
	Areas     []models.AreaOption
	Filter    models.HistoryFilter
	Submitted bool
	Series    []readings.ChartSeries
	ExportURL string
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	data := HistoryPage{Page: s.page("Riwayat", "riwayat")}
	if err := s.withSites(r.Context(), &data.Page); err != nil {
		if unauthorized(w, r, err) {
			return
		}
		data.Notice = farm.Notice(err)
		s.render(w, "history.html", data)
		return
	}

	areas, err := s.farm.AreaOptions(r.Context(), data.SiteID)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: area options %s: %v", data.SiteID, err)
		data.Notice = farm.Notice(err)
	}
	data.Areas = areas

	query := r.URL.Query()
	if !query.Has("start_date") && !query.Has("end_date") && !query.Has("areas") {
		s.render(w, "history.html", data)
		return
	}
	data.Submitted = true
	if err := s.decoder.Decode(&data.Filter, query); err != nil {
		log.Printf("api: decode history filter: %v", err)
	}

	series, err := s.farm.History(r.Context(), data.SiteID, data.Filter)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: history %s: %v", data.SiteID, err)
		data.Notice = farm.Notice(err)
	} else {
		data.Series = series
		data.ExportURL = "/riwayat/export?" + query.Encode()
	}
	s.render(w, "history.html", data)
}

// handleHistoryExport streams the filtered history as CSV.
func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	siteID, err := s.farm.SelectedSite(r.Context())
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		http.Error(w, farm.Notice(err), http.StatusBadRequest)
		return
	}

	var filter models.HistoryFilter
	if err := s.decoder.Decode(&filter, r.URL.Query()); err != nil {
		log.Printf("api: decode history filter: %v", err)
	}
	series, err := s.farm.History(r.Context(), siteID, filter)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		http.Error(w, farm.Notice(err), http.StatusBadRequest)
		return
	}

	name := fmt.Sprintf("riwayat_%s_%s_%s.csv", siteID, filter.StartDate, filter.EndDate)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := readings.WriteCSV(w, series); err != nil {
		log.Printf("api: write csv: %v", err)
	}
}

// handleSelectSite remembers the chosen site and returns to the page the
// selector was on.
func (s *Server) handleSelectSite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := s.farm.Select(r.PostForm.Get("site_id")); err != nil {
		log.Printf("api: select site: %v", err)
	}
	http.Redirect(w, r, localRedirect(r.PostForm.Get("next"), "/dashboard"), http.StatusSeeOther)
}

// localRedirect returns next when it is a path on this server.
func localRedirect(next, fallback string) string {
	u, err := url.Parse(next)
	if err != nil || next == "" || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(next, "//") {
		return fallback
	}
	return u.RequestURI()
}

type PhasePage struct {
	Page
	Phases   []phase.Phase
	Detected *phase.Phase
	Filename string
}

func (s *Server) handlePhasePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "phase.html", PhasePage{Page: s.page("Deteksi Fase Padi", "deteksi-fase-padi"), Phases: phase.All()})
}

func (s *Server) handlePhaseDetect(w http.ResponseWriter, r *http.Request) {
	data := PhasePage{Page: s.page("Deteksi Fase Padi", "deteksi-fase-padi"), Phases: phase.All()}
	if s.detector == nil {
		data.Notice = phase.UnreachableNotice
		s.render(w, "phase.html", data)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		data.Notice = phase.Notice(phase.ErrNoImage)
		s.render(w, "phase.html", data)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		data.Notice = phase.Notice(phase.ErrNoImage)
		s.render(w, "phase.html", data)
		return
	}
	defer file.Close()
	data.Filename = hdr.Filename

	result, err := s.detector.Detect(r.Context(), hdr.Filename, file)
	if err != nil {
		log.Printf("api: detect phase: %v", err)
		data.Notice = phase.Notice(err)
	} else if p, ok := result.Phase(); ok {
		data.Detected = &p
	} else {
		data.Notice = "Fase tidak dikenali."
	}
	s.render(w, "phase.html", data)
}
