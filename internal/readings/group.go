package readings

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kawaltani/kawaltani/internal/models"
)

// Kind is a soil measurement type identified by a sensor key prefix.
type Kind string

const (
	Nitrogen    Kind = "nitrogen"
	Phosphorus  Kind = "fosfor"
	Potassium   Kind = "kalium"
	PH          Kind = "soil_ph"
	Temperature Kind = "soil_temp"
	Humidity    Kind = "soil_hum"
	EC          Kind = "soil_con"
	TDS         Kind = "soil_tds"
	Salinity    Kind = "soil_salin"
)

type prefix struct {
	prefix string
	kind   Kind
	label  string
	unit   string
}

// prefixes are tested in order. soil_phos must come before soil_ph.
var prefixes = []prefix{
	{"soil_nitro", Nitrogen, "Nitrogen", "mg/kg"},
	{"soil_phos", Phosphorus, "Fosfor", "mg/kg"},
	{"soil_pot", Potassium, "Kalium", "mg/kg"},
	{"soil_ph", PH, "pH Tanah", ""},
	{"soil_temp", Temperature, "Suhu Tanah", "°C"},
	{"soil_hum", Humidity, "Kelembapan Tanah", "%"},
	{"soil_con", EC, "EC", "µS/cm"},
	{"soil_tds", TDS, "TDS", "ppm"},
	{"soil_salin", Salinity, "Salinitas", "ppm"},
}

// Kinds lists every kind in prefix priority order.
func Kinds() []Kind {
	kinds := make([]Kind, len(prefixes))
	for i, p := range prefixes {
		kinds[i] = p.kind
	}
	return kinds
}

// NutrientKinds are the kinds shown on the dashboard's soil table.
var NutrientKinds = []Kind{Nitrogen, Phosphorus, Potassium, PH}

func (k Kind) Label() string {
	for _, p := range prefixes {
		if p.kind == k {
			return p.label
		}
	}
	return string(k)
}

func (k Kind) Unit() string {
	for _, p := range prefixes {
		if p.kind == k {
			return p.unit
		}
	}
	return ""
}

// KindOf classifies a sensor key by prefix. The first matching prefix wins.
func KindOf(key string) (Kind, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p.prefix) {
			return p.kind, true
		}
	}
	return "", false
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// AreaIndex extracts the trailing area index from a sensor key. A digit run
// too large for an int saturates at math.MaxInt.
func AreaIndex(key string) (int, bool) {
	m := trailingDigits.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return math.MaxInt, true
	}
	return n, true
}

// Area holds at most one reading per kind for a single area index.
type Area map[Kind]models.SensorReading

// Row is one area's readings, keyed by kind.
type Row struct {
	Area     int
	Readings Area
}

// Get returns the reading for kind, if the area has one.
func (r Row) Get(kind Kind) (models.SensorReading, bool) {
	reading, ok := r.Readings[kind]
	return reading, ok
}

// Grouping is the result of bucketing readings by area.
type Grouping struct {
	Areas    map[int]Area
	Warnings []models.Warning
	indices  []int
}

// Group buckets readings by trailing area index and kind, and collects a
// warning for every Warning or Danger reading. Readings whose key has no
// trailing digits are skipped entirely. A later reading for the same
// (area, kind) replaces an earlier one.
func Group(readings []models.SensorReading) Grouping {
	g := Grouping{Areas: make(map[int]Area)}

	for _, r := range readings {
		area, ok := AreaIndex(r.Key)
		if !ok {
			continue
		}
		bucket, exists := g.Areas[area]
		if !exists {
			bucket = make(Area)
			g.Areas[area] = bucket
			g.indices = append(g.indices, area)
		}
		if kind, ok := KindOf(r.Key); ok {
			bucket[kind] = r
		}
		if r.Status.Alerting() {
			g.Warnings = append(g.Warnings, WarningFor(r))
		}
	}

	sort.Ints(g.indices)
	return g
}

// WarningFor derives the warning shown for an alerting reading.
func WarningFor(r models.SensorReading) models.Warning {
	return models.Warning{
		SensorLabel:   r.Label,
		StatusMessage: r.StatusMessage,
		ActionMessage: r.Action(),
		Severity:      r.Status,
	}
}

// AreaIndices returns the area indices in ascending order.
func (g Grouping) AreaIndices() []int {
	out := make([]int, len(g.indices))
	copy(out, g.indices)
	return out
}

// Series returns kind's readings ordered by ascending area index. Areas
// without a reading for kind contribute nothing, so series for different
// kinds need not line up by position. Use Rows to align by area.
func (g Grouping) Series(kind Kind) []models.SensorReading {
	var out []models.SensorReading
	for _, area := range g.indices {
		if r, ok := g.Areas[area][kind]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Rows returns one row per area in ascending order, restricted to areas
// that have a reading for at least one of kinds.
func (g Grouping) Rows(kinds ...Kind) []Row {
	var rows []Row
	for _, area := range g.indices {
		bucket := g.Areas[area]
		row := Row{Area: area, Readings: make(Area)}
		for _, k := range kinds {
			if r, ok := bucket[k]; ok {
				row.Readings[k] = r
			}
		}
		if len(row.Readings) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// Present returns the kinds that have at least one reading, in priority order.
func (g Grouping) Present() []Kind {
	var kinds []Kind
	for _, k := range Kinds() {
		for _, bucket := range g.Areas {
			if _, ok := bucket[k]; ok {
				kinds = append(kinds, k)
				break
			}
		}
	}
	return kinds
}
