package models

import (
	"encoding/json"
	"time"

	"github.com/kawaltani/kawaltani/internal/status"
)

// SensorReading is a single tagged reading. Key carries a kind prefix and a
// trailing area index, e.g. "soil_ph_2".
type SensorReading struct {
	Key           string
	Label         string
	Value         float64
	RawDate       string
	Timestamp     *time.Time
	Status        status.Tier
	StatusCode    string
	StatusMessage string
	ActionMessage *string
}

// Action returns the action message, or "-" when the backend sent none.
func (r SensorReading) Action() string {
	if r.ActionMessage == nil || *r.ActionMessage == "" {
		return "-"
	}
	return *r.ActionMessage
}

// Warning is derived from a reading in the Warning or Danger tier.
type Warning struct {
	SensorLabel   string      `json:"sensor_name"`
	StatusMessage string      `json:"status_message"`
	ActionMessage string      `json:"action_message"`
	Severity      status.Tier `json:"-"`
}

// MarshalJSON keeps the backend's value_status code on the wire.
func (w Warning) MarshalJSON() ([]byte, error) {
	type alias Warning
	return json.Marshal(struct {
		alias
		ValueStatus string `json:"value_status"`
		Color       string `json:"color"`
	}{alias(w), w.Severity.String(), w.Severity.Color()})
}

type User struct {
	ID      FlexString `json:"user_id"`
	Name    string     `json:"user_name"`
	Email   string     `json:"user_email"`
	Phone   string     `json:"user_phone"`
	RoleID  FlexString `json:"role_id"`
	Status  FlexString `json:"user_sts"`
	Created string     `json:"user_created"`
	Updated string     `json:"user_updated"`
	Avatar  string     `json:"avatar_url"`
}

type ChatSession struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type Device struct {
	ID    FlexString `json:"dev_id"`
	Image *string    `json:"dev_img"`
}

// PlantSummary is the plant block of the dashboard payload.
type PlantSummary struct {
	ID            FlexString `json:"pl_id"`
	Name          string     `json:"pl_name"`
	Description   string     `json:"pl_desc"`
	DatePlanting  string     `json:"pl_date_planting"`
	Age           FlexFloat  `json:"age"`
	Phase         string     `json:"phase"`
	TimeToHarvest FlexFloat  `json:"timeto_harvest"`
	Commodity     string     `json:"commodity"`
	Variety       string     `json:"variety"`
}

type Todo struct {
	Title          string `json:"hand_title"`
	Date           string `json:"todo_date"`
	FertilizerType string `json:"fertilizer_type"`
}

type PlantTodos struct {
	PlantID FlexString `json:"plant_id"`
	Todos   []Todo     `json:"todos"`
}

type Plant struct {
	ID           FlexString `json:"pl_id" schema:"-"`
	DeviceID     FlexString `json:"dev_id" schema:"-"`
	Name         string     `json:"pl_name" schema:"pl_name"`
	Description  string     `json:"pl_desc" schema:"pl_desc"`
	Area         FlexString `json:"pl_area" schema:"pl_area"`
	DatePlanting string     `json:"pl_date_planting" schema:"pl_date_planting"`
	Lat          FlexString `json:"pl_lat" schema:"pl_lat"`
	Lon          FlexString `json:"pl_lon" schema:"pl_lon"`
}

type Site struct {
	ID        FlexString `json:"site_id" schema:"-"`
	Name      string     `json:"site_name" schema:"site_name"`
	Address   string     `json:"site_address" schema:"site_address"`
	Lat       FlexString `json:"site_lat" schema:"site_lat"`
	Lon       FlexString `json:"site_lon" schema:"site_lon"`
	Elevation FlexString `json:"site_elevasi" schema:"site_elevasi"`
	Status    FlexString `json:"site_sts" schema:"site_sts"`
}

// SensorConfig holds a sensor's thresholds as configured on the backend.
type SensorConfig struct {
	ID          FlexString `json:"ds_id" schema:"-"`
	Name        string     `json:"ds_name" schema:"ds_name"`
	NormalValue FlexString `json:"dc_normal_value" schema:"dc_normal_value"`
	MinNorm     FlexString `json:"ds_min_norm_value" schema:"ds_min_norm_value"`
	MaxNorm     FlexString `json:"ds_max_norm_value" schema:"ds_max_norm_value"`
	Min         FlexString `json:"ds_min_value" schema:"ds_min_value"`
	Max         FlexString `json:"ds_max_value" schema:"ds_max_value"`
	MinWarn     FlexString `json:"ds_min_val_warn" schema:"ds_min_val_warn"`
	MaxWarn     FlexString `json:"ds_max_val_warn" schema:"ds_max_val_warn"`
	Status      FlexString `json:"ds_sts" schema:"ds_sts"`
}

// ProfileUpdate is the body of PUT /api/profile. Password fields are only
// sent when a new password is requested.
type ProfileUpdate struct {
	Name                    string `json:"user_name" schema:"user_name"`
	Email                   string `json:"user_email" schema:"user_email"`
	Phone                   string `json:"user_phone" schema:"user_phone"`
	CurrentPassword         string `json:"current_password,omitempty" schema:"current_password"`
	NewPassword             string `json:"new_password,omitempty" schema:"new_password"`
	NewPasswordConfirmation string `json:"new_password_confirmation,omitempty" schema:"new_password_confirmation"`
}

type AreaOption struct {
	Value FlexString `json:"value"`
	Label string     `json:"label"`
}

// HistoryFilter selects readings for the history chart.
type HistoryFilter struct {
	SiteID    string   `json:"site_id" schema:"-"`
	Areas     []string `json:"areas" schema:"areas"`
	Sensors   []string `json:"sensors" schema:"-"`
	StartDate string   `json:"start_date" schema:"start_date"`
	EndDate   string   `json:"end_date" schema:"end_date"`
}

type HistoryPoint struct {
	SensorID   FlexString `json:"ds_id"`
	SensorName string     `json:"sensor_name"`
	ReadValue  FlexFloat  `json:"read_value"`
	ReadDate   string     `json:"read_date"`
}

// Series returns the name a history point is charted under.
func (p HistoryPoint) Series() string {
	if p.SensorName != "" {
		return p.SensorName
	}
	return p.SensorID.String()
}
