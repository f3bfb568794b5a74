package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/models"
)

type loginForm struct {
	Username string `schema:"user_name"`
	Password string `schema:"user_pass"`
}

type LoginPage struct {
	Page
	Username string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.session.LoggedIn() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.render(w, "login.html", LoginPage{Page: s.page("Masuk", "login")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := s.decoder.Decode(&form, r.PostForm); err != nil {
		log.Printf("api: decode login form: %v", err)
	}
	data := LoginPage{Page: s.page("Masuk", "login"), Username: form.Username}

	if strings.TrimSpace(form.Username) == "" || form.Password == "" {
		data.Notice = "Username dan password wajib diisi."
		s.renderStatus(w, http.StatusBadRequest, "login.html", data)
		return
	}

	creds, err := s.backend.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		log.Printf("api: login %s: %v", form.Username, err)
		data.Notice = backend.Message(err, "Login gagal")
		s.renderStatus(w, http.StatusUnauthorized, "login.html", data)
		return
	}
	if err := s.session.SetCredentials(creds.Token, creds.User); err != nil {
		log.Printf("api: save session: %v", err)
		data.Notice = "Login gagal"
		s.renderStatus(w, http.StatusInternalServerError, "login.html", data)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout revokes the token and clears the session. The local session
// is cleared even when the backend call fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.session.LoggedIn() {
		if err := s.backend.Logout(r.Context()); err != nil {
			log.Printf("api: logout: %v", err)
		}
	}
	if err := s.session.Clear(); err != nil {
		log.Printf("api: clear session: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type ProfilePage struct {
	Page
	Profile models.User
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	data := ProfilePage{Page: s.page("Profil", "profil")}
	profile, err := s.backend.Profile(r.Context())
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: profile: %v", err)
		data.Notice = backend.Message(err, "Gagal memuat profil")
	}
	data.Profile = profile
	s.render(w, "profile.html", data)
}

func (s *Server) handleProfileSave(w http.ResponseWriter, r *http.Request) {
	data := ProfilePage{Page: s.page("Profil", "profil")}

	var update models.ProfileUpdate
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := s.decoder.Decode(&update, r.PostForm); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	msg, err := s.backend.UpdateProfile(r.Context(), update)
	if unauthorized(w, r, err) {
		return
	}
	switch {
	case errors.Is(err, backend.ErrNetwork):
		log.Printf("api: update profile: %v", err)
		data.Notice = "Terjadi kesalahan saat update profil"
	case err != nil:
		log.Printf("api: update profile: %v", err)
		data.Notice = backend.Message(err, "Gagal update profil")
	default:
		data.Flash = msg
		if data.Flash == "" {
			data.Flash = "Profil berhasil diperbarui"
		}
	}

	profile, perr := s.backend.Profile(r.Context())
	if perr != nil {
		profile = models.User{Name: update.Name, Email: update.Email, Phone: update.Phone}
	}
	data.Profile = profile
	s.render(w, "profile.html", data)
}
