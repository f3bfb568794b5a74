package farm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/readings"
	"github.com/kawaltani/kawaltani/internal/session"
)

var (
	ErrNoSite        = errors.New("farm: no site selected")
	ErrMissingFilter = errors.New("farm: missing history filter")
)

// MissingFilterNotice is shown when the history form is incomplete.
const MissingFilterNotice = "Semua filter wajib diisi."

// Backend is the subset of the REST client the farm pages read from.
type Backend interface {
	Dashboard(ctx context.Context, siteID string) (models.DashboardPayload, error)
	Realtime(ctx context.Context, siteID string) (models.RealtimePayload, error)
	History(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryPoint, error)
	AreaOptions(ctx context.Context, siteID string) ([]models.AreaOption, error)
	Sites(ctx context.Context) ([]models.Site, error)
}

// SiteSelection is where the selected site is remembered.
type SiteSelection interface {
	SiteID() string
	SelectSite(siteID string) error
}

// Service fetches and shapes the data behind each page.
type Service struct {
	backend Backend
	sites   SiteSelection
	loc     *time.Location
	now     func() time.Time
}

func NewService(b Backend, sites SiteSelection, loc *time.Location) *Service {
	return &Service{backend: b, sites: sites, loc: loc, now: time.Now}
}

// Location returns the zone readings are interpreted in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// DashboardView is the dashboard page for one site. Either half may have
// failed independently; the other still renders.
type DashboardView struct {
	SiteID       string
	Dashboard    models.DashboardPayload
	DashboardErr error
	Soil         readings.Grouping
	Realtime     bool
	RealtimeErr  error
	Warnings     []models.Warning
	FetchedAt    time.Time

	// Latest environmental readings, nil when the list was empty.
	Temperature *models.SensorReading
	Humidity    *models.SensorReading
	Wind        *models.SensorReading
	Lux         *models.SensorReading
	Rain        *models.SensorReading
}

// OK reports whether both fetches succeeded.
func (v *DashboardView) OK() bool {
	return v.DashboardErr == nil && v.RealtimeErr == nil
}

// SoilRows returns the nutrient table, aligned by area.
func (v *DashboardView) SoilRows() []readings.Row {
	return v.Soil.Rows(readings.NutrientKinds...)
}

// Dashboard fetches the dashboard payload and then the realtime payload for
// siteID. Environmental warnings come first, followed by the warnings of the
// realtime readings. When the realtime fetch fails the soil table falls back
// to the dashboard's own nutrient lists. An unauthorized response from
// either call fails the whole view.
func (s *Service) Dashboard(ctx context.Context, siteID string) (*DashboardView, error) {
	if !session.ValidSite(siteID) {
		return nil, ErrNoSite
	}
	v := &DashboardView{SiteID: siteID, FetchedAt: s.now()}

	d, err := s.backend.Dashboard(ctx, siteID)
	if errors.Is(err, backend.ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		v.DashboardErr = err
	} else {
		v.Dashboard = d
		v.Warnings = readings.EnvironmentWarnings(d, s.loc)
		v.Temperature = s.latest(d.Temperature)
		v.Humidity = s.latest(d.Humidity)
		v.Wind = s.latest(d.Wind)
		v.Lux = s.latest(d.Lux)
		v.Rain = s.latest(d.Rain)
	}

	rt, err := s.backend.Realtime(ctx, siteID)
	if errors.Is(err, backend.ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		v.RealtimeErr = err
		v.Soil = readings.Group(s.dashboardSoil(d))
		return v, nil
	}

	v.Realtime = true
	v.Soil = readings.Group(models.Readings(rt.Sensors, s.loc))
	v.Warnings = append(v.Warnings, v.Soil.Warnings...)
	if rt.LastUpdated != "" && v.Dashboard.LastUpdated == "" {
		v.Dashboard.LastUpdated = rt.LastUpdated
	}
	return v, nil
}

func (s *Service) latest(list []models.RawReading) *models.SensorReading {
	r, ok := readings.Latest(list, s.loc)
	if !ok {
		return nil
	}
	return &r
}

func (s *Service) dashboardSoil(d models.DashboardPayload) []models.SensorReading {
	var all []models.RawReading
	for _, list := range [][]models.RawReading{d.Nitrogen, d.Fosfor, d.Kalium, d.SoilPH} {
		all = append(all, list...)
	}
	return models.Readings(all, s.loc)
}

// RealtimeView is the realtime page for one site.
type RealtimeView struct {
	SiteID      string
	Readings    []models.SensorReading
	Grouping    readings.Grouping
	LastUpdated string
	FetchedAt   time.Time
}

// Rows returns every area with the kinds present at the site.
func (v *RealtimeView) Rows() []readings.Row {
	return v.Grouping.Rows(v.Grouping.Present()...)
}

func (s *Service) Realtime(ctx context.Context, siteID string) (*RealtimeView, error) {
	if !session.ValidSite(siteID) {
		return nil, ErrNoSite
	}
	rt, err := s.backend.Realtime(ctx, siteID)
	if err != nil {
		return nil, err
	}
	rs := models.Readings(rt.Sensors, s.loc)
	return &RealtimeView{
		SiteID:      siteID,
		Readings:    rs,
		Grouping:    readings.Group(rs),
		LastUpdated: rt.LastUpdated,
		FetchedAt:   s.now(),
	}, nil
}

// History validates filter and fetches chart series. The filter needs at
// least one area and both dates.
func (s *Service) History(ctx context.Context, siteID string, filter models.HistoryFilter) ([]readings.ChartSeries, error) {
	var areas []string
	for _, a := range filter.Areas {
		if a = strings.TrimSpace(a); a != "" {
			areas = append(areas, a)
		}
	}
	if len(areas) == 0 || strings.TrimSpace(filter.StartDate) == "" || strings.TrimSpace(filter.EndDate) == "" {
		return nil, ErrMissingFilter
	}
	if !session.ValidSite(siteID) {
		return nil, ErrNoSite
	}

	filter.SiteID = siteID
	filter.Areas = areas
	filter.Sensors = []string{"all"}
	points, err := s.backend.History(ctx, filter)
	if err != nil {
		return nil, err
	}
	return readings.Chart(points), nil
}

func (s *Service) AreaOptions(ctx context.Context, siteID string) ([]models.AreaOption, error) {
	if !session.ValidSite(siteID) {
		return nil, ErrNoSite
	}
	return s.backend.AreaOptions(ctx, siteID)
}

// Sites lists the user's sites and resolves the selection: the remembered
// site, or the first site when nothing is remembered. The resolved site is
// remembered.
func (s *Service) Sites(ctx context.Context) ([]models.Site, string, error) {
	sites, err := s.backend.Sites(ctx)
	if err != nil {
		return nil, "", err
	}
	selected := s.sites.SiteID()
	if !session.ValidSite(selected) && len(sites) > 0 {
		selected = sites[0].ID.String()
		if err := s.sites.SelectSite(selected); err != nil {
			return sites, selected, fmt.Errorf("remember site: %w", err)
		}
	}
	return sites, selected, nil
}

// SelectedSite returns the remembered site, resolving a default when none
// is remembered yet.
func (s *Service) SelectedSite(ctx context.Context) (string, error) {
	if id := s.sites.SiteID(); session.ValidSite(id) {
		return id, nil
	}
	_, selected, err := s.Sites(ctx)
	if err != nil {
		return "", err
	}
	if !session.ValidSite(selected) {
		return "", ErrNoSite
	}
	return selected, nil
}

// Select remembers siteID as the selected site.
func (s *Service) Select(siteID string) error {
	if !session.ValidSite(siteID) {
		return ErrNoSite
	}
	return s.sites.SelectSite(siteID)
}

// Notice returns the user-facing message for a farm error.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingFilter):
		return MissingFilterNotice
	case errors.Is(err, ErrNoSite):
		return "Pilih lahan terlebih dahulu."
	case errors.Is(err, backend.ErrNetwork):
		return "Terjadi kesalahan saat mengambil data."
	default:
		return backend.Message(err, "Gagal memuat data.")
	}
}
