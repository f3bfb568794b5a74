package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/models"
)

const (
	plantSaved      = "Berhasil diperbarui."
	plantSaveFailed = "Terjadi kesalahan saat memperbarui."
	sensorSaved     = "Sensor berhasil diperbarui"
	sensorFailed    = "Gagal menyimpan data sensor"
	loadFailed      = "Gagal memuat data."
)

// EditPage is the list and edit view of one backend resource. Item is set
// when a single record is being edited.
type EditPage[T any] struct {
	Page
	Items []T
	Item  *T
	ID    string
}

// decodeInto overlays the posted form onto dst. Fields absent from the form
// keep their stored value, so the whole record is sent back on update.
func (s *Server) decodeInto(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	return s.decoder.Decode(dst, r.PostForm)
}

func (s *Server) handlePlants(w http.ResponseWriter, r *http.Request) {
	data := EditPage[models.Plant]{Page: s.page("Tanaman", "plant")}
	plants, err := s.backend.Plants(r.Context())
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: list plants: %v", err)
		data.Notice = backend.Message(err, loadFailed)
	}
	data.Items = plants
	s.render(w, "plants.html", data)
}

func (s *Server) handlePlantEdit(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	data := EditPage[models.Plant]{Page: s.page("Ubah Tanaman", "plant"), ID: id}
	plant, err := s.backend.Plant(r.Context(), id)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: get plant %s: %v", id, err)
		data.Notice = backend.Message(err, loadFailed)
		s.renderStatus(w, http.StatusNotFound, "plants.html", data)
		return
	}
	data.Item = &plant
	s.render(w, "plants.html", data)
}

func (s *Server) handlePlantSave(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	data := EditPage[models.Plant]{Page: s.page("Ubah Tanaman", "plant"), ID: id}

	plant, err := s.backend.Plant(r.Context(), id)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: get plant %s: %v", id, err)
		data.Notice = plantSaveFailed
		s.renderStatus(w, http.StatusBadGateway, "plants.html", data)
		return
	}
	if err := s.decodeInto(r, &plant); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	data.Item = &plant

	err = s.backend.UpdatePlant(r.Context(), id, plant)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: update plant %s: %v", id, err)
		data.Notice = plantSaveFailed
		s.renderStatus(w, http.StatusBadGateway, "plants.html", data)
		return
	}
	data.Flash = plantSaved
	s.render(w, "plants.html", data)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	data := EditPage[models.Site]{Page: s.page("Lahan", "lahan")}
	sites, err := s.backend.Sites(r.Context())
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: list sites: %v", err)
		data.Notice = backend.Message(err, loadFailed)
	}
	data.Items = sites
	s.render(w, "sites.html", data)
}

func (s *Server) handleSiteEdit(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	data := EditPage[models.Site]{Page: s.page("Ubah Lahan", "lahan"), ID: id}
	site, err := s.backend.Site(r.Context(), id)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: get site %s: %v", id, err)
		data.Notice = backend.Message(err, loadFailed)
		s.renderStatus(w, http.StatusNotFound, "sites.html", data)
		return
	}
	data.Item = &site
	s.render(w, "sites.html", data)
}

func (s *Server) handleSiteSave(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	data := EditPage[models.Site]{Page: s.page("Ubah Lahan", "lahan"), ID: id}

	site, err := s.backend.Site(r.Context(), id)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: get site %s: %v", id, err)
		data.Notice = plantSaveFailed
		s.renderStatus(w, http.StatusBadGateway, "sites.html", data)
		return
	}
	if err := s.decodeInto(r, &site); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	data.Item = &site

	err = s.backend.UpdateSite(r.Context(), id, site)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: update site %s: %v", id, err)
		data.Notice = plantSaveFailed
		s.renderStatus(w, http.StatusBadGateway, "sites.html", data)
		return
	}
	data.Flash = plantSaved
	s.render(w, "sites.html", data)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	data := EditPage[models.SensorConfig]{Page: s.page("Sensor", "sensor")}
	err := s.withSites(r.Context(), &data.Page)
	if err == nil {
		if data.SiteID == "" {
			err = farm.ErrNoSite
		} else {
			data.Items, err = s.backend.Sensors(r.Context(), data.SiteID)
		}
	}
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: list sensors: %v", err)
		data.Notice = farm.Notice(err)
	}
	s.render(w, "sensors.html", data)
}

func (s *Server) handleSensorEdit(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	data := EditPage[models.SensorConfig]{Page: s.page("Ubah Sensor", "sensor"), ID: id}
	sensor, err := s.backend.Sensor(r.Context(), id)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: get sensor %s: %v", id, err)
		data.Notice = backend.Message(err, loadFailed)
		s.renderStatus(w, http.StatusNotFound, "sensors.html", data)
		return
	}
	data.Item = &sensor
	s.render(w, "sensors.html", data)
}

func (s *Server) handleSensorSave(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	data := EditPage[models.SensorConfig]{Page: s.page("Ubah Sensor", "sensor"), ID: id}

	var sensor models.SensorConfig
	if err := s.decodeInto(r, &sensor); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	data.Item = &sensor

	err := s.backend.UpdateSensor(r.Context(), id, sensor)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: update sensor %s: %v", id, err)
		data.Notice = sensorFailed
		if !errors.Is(err, backend.ErrNetwork) {
			data.Notice = backend.Message(err, sensorFailed)
		}
		s.renderStatus(w, http.StatusBadGateway, "sensors.html", data)
		return
	}
	data.Flash = sensorSaved
	s.render(w, "sensors.html", data)
}
