package models

import (
	"time"

	"github.com/kawaltani/kawaltani/internal/status"
)

// RawReading is a reading as the backend sends it, in both the realtime
// sensors list and the dashboard's per-kind lists.
type RawReading struct {
	Sensor        string    `json:"sensor"`
	SensorName    string    `json:"sensor_name"`
	ReadValue     FlexFloat `json:"read_value"`
	ReadDate      *string   `json:"read_date"`
	ValueStatus   string    `json:"value_status"`
	StatusMessage string    `json:"status_message"`
	ActionMessage *string   `json:"action_message"`
}

// Reading converts the wire form, classifying its status and parsing its
// date in loc.
func (r RawReading) Reading(loc *time.Location) SensorReading {
	reading := SensorReading{
		Key:           r.Sensor,
		Label:         r.SensorName,
		Value:         r.ReadValue.Float64(),
		Status:        status.Classify(r.ValueStatus),
		StatusCode:    r.ValueStatus,
		StatusMessage: r.StatusMessage,
		ActionMessage: r.ActionMessage,
	}
	if r.ReadDate != nil {
		reading.RawDate = *r.ReadDate
		if t, ok := ParseTimestamp(*r.ReadDate, loc); ok {
			reading.Timestamp = &t
		}
	}
	return reading
}

// Readings converts a list of wire readings.
func Readings(raw []RawReading, loc *time.Location) []SensorReading {
	readings := make([]SensorReading, 0, len(raw))
	for _, r := range raw {
		readings = append(readings, r.Reading(loc))
	}
	return readings
}

type RealtimePayload struct {
	Sensors     []RawReading `json:"sensors"`
	LastUpdated string       `json:"last_updated"`
}

type DashboardPayload struct {
	Devices     []Device       `json:"devices"`
	Nitrogen    []RawReading   `json:"nitrogen"`
	Fosfor      []RawReading   `json:"fosfor"`
	Kalium      []RawReading   `json:"kalium"`
	SoilPH      []RawReading   `json:"soil_ph"`
	Temperature []RawReading   `json:"temperature"`
	Humidity    []RawReading   `json:"humidity"`
	Wind        []RawReading   `json:"wind"`
	Lux         []RawReading   `json:"lux"`
	Rain        []RawReading   `json:"rain"`
	Plants      []PlantSummary `json:"plants"`
	LastUpdated string         `json:"last_updated"`
	Todos       []PlantTodos   `json:"todos"`
}

// ChatName is one entry of GET /api/chat/names. ID and CreatedAt are
// optional on the wire.
type ChatName struct {
	Title     string  `json:"name_chat"`
	CreatedAt *string `json:"created_at"`
	ID        *int64  `json:"id"`
}

// ChatExchange is one stored question/answer pair.
type ChatExchange struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

type ChatReply struct {
	Response string `json:"response"`
	Title    string `json:"name_chat"`
}
