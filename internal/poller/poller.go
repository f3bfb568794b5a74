package poller

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/metrics"
	"github.com/kawaltani/kawaltani/internal/session"
	"github.com/kawaltani/kawaltani/internal/status"
	"github.com/kawaltani/kawaltani/internal/store"
)

// DefaultInterval matches the dashboard's auto-refresh.
const DefaultInterval = 60 * time.Second

// ErrSkipped is returned by Poll when there is no session or site to poll.
var ErrSkipped = errors.New("poller: no session or site")

// Dashboards fetches the combined dashboard view for a site.
type Dashboards interface {
	Dashboard(ctx context.Context, siteID string) (*farm.DashboardView, error)
}

// Session reports who is logged in and which site is selected.
type Session interface {
	LoggedIn() bool
	SiteID() string
}

// Poller refreshes the selected site's dashboard in the background, records
// each run and keeps the warning log current.
type Poller struct {
	store      *store.Store
	dashboards Dashboards
	session    Session
	interval   time.Duration
	backoff    *backoff.ExponentialBackOff
	now        func() time.Time

	mu       sync.RWMutex
	latest   *farm.DashboardView
	lastErr  error
	lastPoll time.Time
}

func New(st *store.Store, dashboards Dashboards, sess Session, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxInterval = interval
	bo.MaxElapsedTime = 0
	return &Poller{
		store:      st,
		dashboards: dashboards,
		session:    sess,
		interval:   interval,
		backoff:    bo,
		now:        time.Now,
	}
}

// Run polls immediately and then every interval until ctx is cancelled.
// After a failed poll the next one comes sooner, backing off exponentially
// up to the interval.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(p.delay(p.Poll(ctx)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("poller: shutting down")
			return
		case <-timer.C:
			timer.Reset(p.delay(p.Poll(ctx)))
		}
	}
}

func (p *Poller) delay(err error) time.Duration {
	if err == nil || errors.Is(err, ErrSkipped) {
		p.backoff.Reset()
		return p.interval
	}
	d := p.backoff.NextBackOff()
	if d == backoff.Stop || d > p.interval {
		return p.interval
	}
	return d
}

// Poll runs one refresh of the selected site.
func (p *Poller) Poll(ctx context.Context) error {
	siteID := p.session.SiteID()
	if !p.session.LoggedIn() || !session.ValidSite(siteID) {
		metrics.PollRunsTotal.WithLabelValues("skipped").Inc()
		return ErrSkipped
	}

	run, err := p.store.StartPollRun(siteID)
	if err != nil {
		log.Printf("poller: start run: %v", err)
	}

	view, err := p.dashboards.Dashboard(ctx, siteID)
	if err != nil {
		log.Printf("poller: dashboard %s: %v", siteID, err)
		metrics.PollRunsTotal.WithLabelValues("error").Inc()
		p.finish(run, nil, err)
		return err
	}

	now := p.now()
	for _, w := range view.Warnings {
		if err := p.store.UpsertWarning(siteID, w, now); err != nil {
			log.Printf("poller: record warning %q: %v", w.SensorLabel, err)
		}
	}
	setWarningGauge(view)

	var pollErr error
	if view.OK() {
		metrics.PollRunsTotal.WithLabelValues("success").Inc()
	} else {
		pollErr = errors.Join(view.DashboardErr, view.RealtimeErr)
		log.Printf("poller: partial refresh of %s: %v", siteID, pollErr)
		metrics.PollRunsTotal.WithLabelValues("partial").Inc()
	}
	log.Printf("poller: refreshed %s, %d warnings", siteID, len(view.Warnings))

	p.finish(run, view, pollErr)
	return pollErr
}

func (p *Poller) finish(run *store.PollRun, view *farm.DashboardView, err error) {
	p.mu.Lock()
	if view != nil {
		p.latest = view
	}
	p.lastErr = err
	p.lastPoll = p.now()
	p.mu.Unlock()

	if run == nil {
		return
	}
	run.Success = err == nil
	if view != nil {
		run.DashboardOK = view.DashboardErr == nil
		run.RealtimeOK = view.RealtimeErr == nil
		run.Readings = sql.NullInt64{Int64: int64(countReadings(view)), Valid: true}
		run.Warnings = sql.NullInt64{Int64: int64(len(view.Warnings)), Valid: true}
	}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: strings.ReplaceAll(err.Error(), "\n", "; "), Valid: true}
	}
	if err := p.store.CompletePollRun(run); err != nil {
		log.Printf("poller: complete run: %v", err)
	}
}

// Latest returns the most recent dashboard view for siteID, if the last
// successful poll was for that site.
func (p *Poller) Latest(siteID string) (*farm.DashboardView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil || p.latest.SiteID != siteID {
		return nil, false
	}
	return p.latest, true
}

// Status returns when the last poll ran and how it ended.
func (p *Poller) Status() (time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPoll, p.lastErr
}

func countReadings(v *farm.DashboardView) int {
	n := 0
	for _, area := range v.Soil.Areas {
		n += len(area)
	}
	return n
}

func setWarningGauge(v *farm.DashboardView) {
	counts := map[status.Tier]int{}
	for _, w := range v.Warnings {
		counts[w.Severity]++
	}
	for _, tier := range []status.Tier{status.Warning, status.Danger} {
		metrics.ActiveWarnings.WithLabelValues(tier.String()).Set(float64(counts[tier]))
	}
}
