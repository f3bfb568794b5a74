package api

import (
	"embed"
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/readings"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates(loc *time.Location) *template.Template {
	funcs := template.FuncMap{
		"value": readings.FormatValue,
		"reading": func(row readings.Row, kind readings.Kind) *models.SensorReading {
			if r, ok := row.Get(kind); ok {
				return &r
			}
			return nil
		},
		"localTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(loc).Format("02 Jan 2006 15:04")
		},
		"deviceImage": func(d models.Device) string {
			if d.Image == nil || *d.Image == "" {
				return ""
			}
			return "/assets/img/" + *d.Image
		},
		"json": func(v any) (template.JS, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return template.JS(data), nil
		},
		"contains": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
		"orDash": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "-"
			}
			return s
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
