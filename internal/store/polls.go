package store

import (
	"database/sql"
	"time"
)

// PollRun records one background refresh of a site's dashboard.
type PollRun struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	SiteID       string
	DashboardOK  bool
	RealtimeOK   bool
	Readings     sql.NullInt64
	Warnings     sql.NullInt64
	Success      bool
	ErrorMessage sql.NullString
}

// StartPollRun creates a new poll run record and returns it.
func (s *Store) StartPollRun(siteID string) (*PollRun, error) {
	run := &PollRun{
		StartedAt: time.Now().UTC(),
		SiteID:    siteID,
	}

	result, err := s.db.Exec(`
		INSERT INTO poll_runs (started_at, site_id, success)
		VALUES (?, ?, FALSE)
	`, run.StartedAt, run.SiteID)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompletePollRun updates the poll run with results.
func (s *Store) CompletePollRun(run *PollRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE poll_runs SET
			finished_at = ?,
			dashboard_ok = ?,
			realtime_ok = ?,
			readings = ?,
			warnings = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.DashboardOK, run.RealtimeOK, run.Readings,
		run.Warnings, run.Success, run.ErrorMessage, run.ID)
	return err
}

// PollHealthSummary is a daily count of poll outcomes.
type PollHealthSummary struct {
	Date        string
	TotalRuns   int
	SuccessRuns int
	FailedRuns  int
}

// GetPollHealth returns poll summaries for the last N days.
func (s *Store) GetPollHealth(days int) ([]PollHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs
		FROM poll_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date
		ORDER BY date DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PollHealthSummary
	for rows.Next() {
		var h PollHealthSummary
		if err := rows.Scan(&h.Date, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// RecentPollRuns returns the latest runs, newest first, with times in the
// store's zone.
func (s *Store) RecentPollRuns(limit int) ([]PollRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, site_id, dashboard_ok, realtime_ok,
			   readings, warnings, success, error_message
		FROM poll_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PollRun
	for rows.Next() {
		var r PollRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SiteID,
			&r.DashboardOK, &r.RealtimeOK, &r.Readings, &r.Warnings,
			&r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		r.StartedAt = r.StartedAt.In(s.loc)
		if r.FinishedAt.Valid {
			r.FinishedAt.Time = r.FinishedAt.Time.In(s.loc)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
