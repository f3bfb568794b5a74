package readings

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/kawaltani/kawaltani/internal/models"
)

type ChartPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

type ChartSeries struct {
	Name string       `json:"name"`
	Data []ChartPoint `json:"data"`
}

// Chart groups history points into one series per sensor, in the order each
// sensor first appears. Points keep their input order.
func Chart(points []models.HistoryPoint) []ChartSeries {
	var series []ChartSeries
	index := make(map[string]int)
	for _, p := range points {
		name := p.Series()
		i, ok := index[name]
		if !ok {
			i = len(series)
			index[name] = i
			series = append(series, ChartSeries{Name: name})
		}
		series[i].Data = append(series[i].Data, ChartPoint{X: p.ReadDate, Y: p.ReadValue.Float64()})
	}
	return series
}

// WriteCSV writes chart series as sensor,read_date,read_value rows.
func WriteCSV(w io.Writer, series []ChartSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sensor", "read_date", "read_value"}); err != nil {
		return err
	}
	for _, s := range series {
		for _, p := range s.Data {
			if err := cw.Write([]string{s.Name, p.X, strconv.FormatFloat(p.Y, 'f', -1, 64)}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
