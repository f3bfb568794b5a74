package api

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/schema"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kawaltani/kawaltani/internal/advisor"
	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/chat"
	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/phase"
	"github.com/kawaltani/kawaltani/internal/poller"
	"github.com/kawaltani/kawaltani/internal/session"
	"github.com/kawaltani/kawaltani/internal/store"
)

// Config holds the server's collaborators. Detector, Advisor and Poller
// are optional. Device and phase images are served from AssetsDir when set.
type Config struct {
	Store     *store.Store
	Session   *session.Manager
	Backend   *backend.Client
	Detector  *phase.Detector
	Advisor   *advisor.Advisor
	Poller    *poller.Poller
	Port      string
	Loc       *time.Location
	AssetsDir string
}

type Server struct {
	store    *store.Store
	session  *session.Manager
	backend  *backend.Client
	farm     *farm.Service
	chats    *chat.History
	detector *phase.Detector
	advisor  *advisor.Advisor
	poller   *poller.Poller
	port     string
	loc      *time.Location
	assets   string
	tmpl     *template.Template
	decoder  *schema.Decoder
}

func NewServer(cfg Config) *Server {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Server{
		store:    cfg.Store,
		session:  cfg.Session,
		backend:  cfg.Backend,
		farm:     farm.NewService(cfg.Backend, cfg.Session, cfg.Loc),
		chats:    chat.NewHistory(cfg.Backend, cfg.Session, cfg.Loc),
		detector: cfg.Detector,
		advisor:  cfg.Advisor,
		poller:   cfg.Poller,
		port:     cfg.Port,
		loc:      cfg.Loc,
		assets:   cfg.AssetsDir,
		tmpl:     newTemplates(cfg.Loc),
		decoder:  decoder,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /dashboard", s.requireLogin(s.handleDashboard))
	mux.HandleFunc("GET /realtime", s.requireLogin(s.handleRealtime))
	mux.HandleFunc("GET /riwayat", s.requireLogin(s.handleHistory))
	mux.HandleFunc("GET /riwayat/export", s.requireLogin(s.handleHistoryExport))
	mux.HandleFunc("POST /site", s.requireLogin(s.handleSelectSite))

	mux.HandleFunc("GET /chatbot", s.handleChatbot)
	mux.HandleFunc("POST /chatbot/rename", s.handleChatRename)
	mux.HandleFunc("POST /chatbot/delete", s.handleChatDelete)
	mux.HandleFunc("POST /chatbot/send", s.requireLogin(s.handleChatSend))

	mux.HandleFunc("GET /plant", s.requireLogin(s.handlePlants))
	mux.HandleFunc("GET /plant/edit", s.requireLogin(s.handlePlantEdit))
	mux.HandleFunc("POST /plant/edit", s.requireLogin(s.handlePlantSave))
	mux.HandleFunc("GET /lahan", s.requireLogin(s.handleSites))
	mux.HandleFunc("GET /lahan/edit", s.requireLogin(s.handleSiteEdit))
	mux.HandleFunc("POST /lahan/edit", s.requireLogin(s.handleSiteSave))
	mux.HandleFunc("GET /sensor", s.requireLogin(s.handleSensors))
	mux.HandleFunc("GET /sensor/edit", s.requireLogin(s.handleSensorEdit))
	mux.HandleFunc("POST /sensor/edit", s.requireLogin(s.handleSensorSave))
	mux.HandleFunc("GET /profil", s.requireLogin(s.handleProfile))
	mux.HandleFunc("POST /profil", s.requireLogin(s.handleProfileSave))

	mux.HandleFunc("GET /deteksi-fase-padi", s.handlePhasePage)
	mux.HandleFunc("POST /deteksi-fase-padi", s.handlePhaseDetect)

	mux.HandleFunc("GET /api/dashboard", s.requireLoginJSON(s.handleAPIDashboard))
	mux.HandleFunc("GET /api/realtime", s.requireLoginJSON(s.handleAPIRealtime))
	mux.HandleFunc("GET /api/chats", s.handleAPIChats)
	mux.HandleFunc("GET /api/warnings", s.requireLoginJSON(s.handleAPIWarnings))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.assets != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.assets))))
	}

	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(mux)
	return handlers.CombinedLoggingHandler(log.Writer(), recovered)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.session.LoggedIn() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *Server) requireLoginJSON(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.session.LoggedIn() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

// Page is the layout data shared by every HTML page.
type Page struct {
	Title    string
	Active   string
	LoggedIn bool
	User     models.User
	Sites    []models.Site
	SiteID   string
	Notice   string
	Flash    string
}

func (s *Server) page(title, active string) Page {
	return Page{
		Title:    title,
		Active:   active,
		LoggedIn: s.session.LoggedIn(),
		User:     s.session.User(),
		SiteID:   s.session.SiteID(),
	}
}

// withSites fills the site selector and resolves the selected site.
func (s *Server) withSites(ctx context.Context, p *Page) error {
	sites, selected, err := s.farm.Sites(ctx)
	if err != nil {
		return err
	}
	p.Sites = sites
	p.SiteID = selected
	return nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("api: render %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// unauthorized sends the browser to the login page when err is a 401. The
// session has already been expired by the backend client.
func unauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	http.Redirect(w, r, "/login", http.StatusFound)
	return true
}
