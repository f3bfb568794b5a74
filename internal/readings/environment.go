package readings

import (
	"math"
	"strconv"
	"time"

	"github.com/kawaltani/kawaltani/internal/models"
)

// EnvironmentWarnings checks the latest temperature and humidity readings of
// a dashboard payload. Only the first reading of each list is considered.
func EnvironmentWarnings(d models.DashboardPayload, loc *time.Location) []models.Warning {
	var warnings []models.Warning
	for _, env := range []struct {
		key  string
		list []models.RawReading
	}{
		{"temperature", d.Temperature},
		{"humidity", d.Humidity},
	} {
		if len(env.list) == 0 {
			continue
		}
		r := env.list[0].Reading(loc)
		if !r.Status.Alerting() {
			continue
		}
		w := WarningFor(r)
		if w.SensorLabel == "" {
			w.SensorLabel = env.key
		}
		if w.StatusMessage == "" {
			w.StatusMessage = "-"
		}
		warnings = append(warnings, w)
	}
	return warnings
}

// Latest returns the first reading of list, the one the dashboard cards show.
func Latest(list []models.RawReading, loc *time.Location) (models.SensorReading, bool) {
	if len(list) == 0 {
		return models.SensorReading{}, false
	}
	return list[0].Reading(loc), true
}

// FormatValue prints a reading to at most two decimals.
func FormatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
