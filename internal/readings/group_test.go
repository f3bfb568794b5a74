package readings

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/status"
)

func reading(key, code string) models.SensorReading {
	return models.SensorReading{
		Key:           key,
		Label:         key,
		Status:        status.Classify(code),
		StatusCode:    code,
		StatusMessage: "msg " + key,
	}
}

func keys(rs []models.SensorReading) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Key)
	}
	return out
}

func TestAreaIndex(t *testing.T) {
	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"soil_ph_2", 2, true},
		{"soil_nitro_10", 10, true},
		{"soil_ph2", 2, true},
		{"soil_pot_007", 7, true},
		{"soil_ph_99999999999999999999", math.MaxInt, true},
		{"soil_ph", 0, false},
		{"soil_ph_2a", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := AreaIndex(tt.key)
		if ok != tt.ok || got != tt.want {
			t.Errorf("AreaIndex(%q) = %d, %v, want %d, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKindOf_PrefixPriority(t *testing.T) {
	tests := []struct {
		key  string
		want Kind
		ok   bool
	}{
		{"soil_nitro_1", Nitrogen, true},
		{"soil_phos_1", Phosphorus, true},
		{"soil_pot_1", Potassium, true},
		{"soil_ph_1", PH, true},
		{"soil_temp_1", Temperature, true},
		{"soil_hum_1", Humidity, true},
		{"soil_con_1", EC, true},
		{"soil_tds_1", TDS, true},
		{"soil_salin_1", Salinity, true},
		{"air_temp_1", "", false},
	}

	for _, tt := range tests {
		got, ok := KindOf(tt.key)
		if ok != tt.ok || got != tt.want {
			t.Errorf("KindOf(%q) = %q, %v, want %q, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGroup_Example(t *testing.T) {
	g := Group([]models.SensorReading{
		reading("soil_ph_1", "Warning"),
		reading("soil_nitro_1", "OK"),
		reading("soil_ph_2", "Danger"),
	})

	if got := strings.Join(keys(g.Series(PH)), ","); got != "soil_ph_1,soil_ph_2" {
		t.Errorf("soil_ph series = %s", got)
	}
	if got := strings.Join(keys(g.Series(Nitrogen)), ","); got != "soil_nitro_1" {
		t.Errorf("nitrogen series = %s", got)
	}
	if len(g.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(g.Warnings))
	}
	if g.Warnings[0].SensorLabel != "soil_ph_1" || g.Warnings[0].Severity != status.Warning {
		t.Errorf("unexpected first warning %+v", g.Warnings[0])
	}
	if g.Warnings[1].SensorLabel != "soil_ph_2" || g.Warnings[1].Severity != status.Danger {
		t.Errorf("unexpected second warning %+v", g.Warnings[1])
	}
}

func TestGroup_AscendingAreas(t *testing.T) {
	g := Group([]models.SensorReading{
		reading("soil_ph_10", "OK"),
		reading("soil_ph_2", "OK"),
		reading("soil_ph_1", "OK"),
	})

	if got := strings.Join(keys(g.Series(PH)), ","); got != "soil_ph_1,soil_ph_2,soil_ph_10" {
		t.Errorf("expected numeric ordering, got %s", got)
	}
	indices := g.AreaIndices()
	if len(indices) != 3 || indices[0] != 1 || indices[2] != 10 {
		t.Errorf("unexpected indices %v", indices)
	}
}

func TestGroup_HugeAreaIndex(t *testing.T) {
	g := Group([]models.SensorReading{
		reading("soil_ph_99999999999999999999", "Danger"),
		reading("soil_ph_1", "Warning"),
	})

	if got := strings.Join(keys(g.Series(PH)), ","); got != "soil_ph_1,soil_ph_99999999999999999999" {
		t.Errorf("soil_ph series = %s", got)
	}
	if len(g.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(g.Warnings))
	}
	if g.Warnings[0].Severity != status.Danger {
		t.Errorf("expected Danger warning first, got %+v", g.Warnings[0])
	}
}

func TestGroup_DropsKeysWithoutAreaIndex(t *testing.T) {
	g := Group([]models.SensorReading{
		reading("soil_ph", "Danger"),
		reading("battery", "Warning"),
	})

	if len(g.Areas) != 0 {
		t.Errorf("expected no areas, got %d", len(g.Areas))
	}
	if len(g.Warnings) != 0 {
		t.Errorf("expected no warnings from malformed keys, got %d", len(g.Warnings))
	}
}

func TestGroup_UnknownKindStillWarns(t *testing.T) {
	g := Group([]models.SensorReading{
		reading("air_temp_3", "Danger"),
	})

	if len(g.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(g.Warnings))
	}
	if _, ok := g.Areas[3]; !ok {
		t.Error("expected area 3 to exist")
	}
	if len(g.Areas[3]) != 0 {
		t.Errorf("expected no kinds in area 3, got %v", g.Areas[3])
	}
}

func TestGroup_LastWriteWins(t *testing.T) {
	first := reading("soil_ph_1", "OK")
	first.Value = 5
	second := reading("soil_ph_1", "OK")
	second.Value = 6

	g := Group([]models.SensorReading{first, second})
	series := g.Series(PH)
	if len(series) != 1 || series[0].Value != 6 {
		t.Errorf("expected single value 6, got %+v", series)
	}
}

func TestGroup_PhosphorusIsNotPH(t *testing.T) {
	g := Group([]models.SensorReading{reading("soil_phos_1", "OK")})

	if len(g.Series(PH)) != 0 {
		t.Error("soil_phos_1 must not be grouped as pH")
	}
	if len(g.Series(Phosphorus)) != 1 {
		t.Error("soil_phos_1 should be grouped as phosphorus")
	}
}

func TestGroup_RowsAlignByArea(t *testing.T) {
	// Area 1 has no nitrogen. Positional series would pair area 2's
	// nitrogen with area 1's pH.
	g := Group([]models.SensorReading{
		reading("soil_ph_1", "OK"),
		reading("soil_ph_2", "OK"),
		reading("soil_nitro_2", "OK"),
	})

	rows := g.Rows(NutrientKinds...)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if _, ok := rows[0].Get(Nitrogen); ok {
		t.Error("area 1 should have no nitrogen")
	}
	n, ok := rows[1].Get(Nitrogen)
	if !ok || n.Key != "soil_nitro_2" {
		t.Errorf("area 2 nitrogen = %+v, %v", n, ok)
	}
	if len(g.Series(Nitrogen)) != 1 || len(g.Series(PH)) != 2 {
		t.Error("positional series should have different lengths")
	}
}

func TestGroup_Empty(t *testing.T) {
	g := Group(nil)
	if len(g.Warnings) != 0 || len(g.Rows(Kinds()...)) != 0 || len(g.Present()) != 0 {
		t.Error("expected empty grouping")
	}
}

func TestGroup_WarningActionDefaults(t *testing.T) {
	r := reading("soil_hum_1", "Warning")
	g := Group([]models.SensorReading{r})
	if g.Warnings[0].ActionMessage != "-" {
		t.Errorf("expected '-', got %q", g.Warnings[0].ActionMessage)
	}
}

func TestEnvironmentWarnings(t *testing.T) {
	d := models.DashboardPayload{
		Temperature: []models.RawReading{
			{Sensor: "temperature", ValueStatus: "Danger", StatusMessage: "Terlalu panas"},
			{Sensor: "temperature", ValueStatus: "OK"},
		},
		Humidity: []models.RawReading{
			{Sensor: "humidity", SensorName: "Kelembapan", ValueStatus: "OK"},
		},
	}

	warnings := EnvironmentWarnings(d, time.UTC)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	w := warnings[0]
	if w.SensorLabel != "temperature" {
		t.Errorf("expected label to fall back to key, got %q", w.SensorLabel)
	}
	if w.ActionMessage != "-" {
		t.Errorf("expected action '-', got %q", w.ActionMessage)
	}
	if w.Severity != status.Danger {
		t.Errorf("expected Danger, got %v", w.Severity)
	}
}

func TestEnvironmentWarnings_OnlyFirstReading(t *testing.T) {
	d := models.DashboardPayload{
		Humidity: []models.RawReading{
			{Sensor: "humidity", ValueStatus: "OK"},
			{Sensor: "humidity", ValueStatus: "Danger"},
		},
	}
	if got := EnvironmentWarnings(d, time.UTC); len(got) != 0 {
		t.Errorf("expected no warnings, got %+v", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{6.5, "6.5"},
		{31.256, "31.26"},
		{42, "42"},
		{0.001, "0"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChart(t *testing.T) {
	points := []models.HistoryPoint{
		{SensorName: "pH", ReadDate: "2025-06-01", ReadValue: 6.5},
		{SensorID: "7", ReadDate: "2025-06-01", ReadValue: 30},
		{SensorName: "pH", ReadDate: "2025-06-02", ReadValue: 6.7},
	}

	series := Chart(points)
	if len(series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(series))
	}
	if series[0].Name != "pH" || len(series[0].Data) != 2 {
		t.Errorf("unexpected first series %+v", series[0])
	}
	if series[0].Data[1].X != "2025-06-02" || series[0].Data[1].Y != 6.7 {
		t.Errorf("unexpected point %+v", series[0].Data[1])
	}
	if series[1].Name != "7" {
		t.Errorf("expected ds_id fallback, got %q", series[1].Name)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []ChartSeries{{Name: "pH", Data: []ChartPoint{{X: "2025-06-01", Y: 6.5}}}})
	if err != nil {
		t.Fatal(err)
	}
	want := "sensor,read_date,read_value\npH,2025-06-01,6.5\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
