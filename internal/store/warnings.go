package store

import (
	"time"

	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/status"
)

// WarningEvent is a warning the poller has seen, with when it was first and
// last reported for the site.
type WarningEvent struct {
	SiteID      string
	Warning     models.Warning
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// UpsertWarning records a warning for a site. Updates last_seen_at on
// conflict to track how long a sensor has been alerting.
func (s *Store) UpsertWarning(siteID string, w models.Warning, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO warning_events (
			site_id, sensor_label, severity, status_message, action_message,
			first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, sensor_label) DO UPDATE SET
			severity = excluded.severity,
			status_message = excluded.status_message,
			action_message = excluded.action_message,
			last_seen_at = excluded.last_seen_at
	`, siteID, w.SensorLabel, w.Severity.String(), w.StatusMessage, w.ActionMessage, now.UTC(), now.UTC())
	return err
}

// ActiveWarnings returns a site's warnings seen within maxAge, most severe first.
func (s *Store) ActiveWarnings(siteID string, maxAge time.Duration) ([]WarningEvent, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	rows, err := s.db.Query(`
		SELECT site_id, sensor_label, severity, status_message, action_message,
		       first_seen_at, last_seen_at
		FROM warning_events
		WHERE site_id = ? AND last_seen_at > ?
		ORDER BY CASE severity WHEN 'Danger' THEN 0 ELSE 1 END, last_seen_at DESC
	`, siteID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []WarningEvent
	for rows.Next() {
		var e WarningEvent
		var severity string
		if err := rows.Scan(&e.SiteID, &e.Warning.SensorLabel, &severity,
			&e.Warning.StatusMessage, &e.Warning.ActionMessage,
			&e.FirstSeenAt, &e.LastSeenAt); err != nil {
			return nil, err
		}
		e.Warning.Severity = status.Classify(severity)
		e.FirstSeenAt = e.FirstSeenAt.In(s.loc)
		e.LastSeenAt = e.LastSeenAt.In(s.loc)
		events = append(events, e)
	}
	return events, rows.Err()
}
