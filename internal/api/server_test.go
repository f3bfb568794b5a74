package api_test

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kawaltani/kawaltani/internal/api"
	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/session"
	"github.com/kawaltani/kawaltani/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) (*store.Store, *time.Location) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	loc := time.FixedZone("WIB", 7*3600)
	s := store.New(db, loc)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s, loc
}

type testEnv struct {
	server  http.Handler
	session *session.Manager
	store   *store.Store
}

// newTestEnv wires a server against a fake backend. When loggedIn is set
// the session starts with a token and user.
func newTestEnv(t *testing.T, loggedIn bool, backendMux *http.ServeMux) *testEnv {
	t.Helper()
	st, loc := setupTestStore(t)
	sess, err := session.Load(st)
	if err != nil {
		t.Fatal(err)
	}
	if loggedIn {
		if err := sess.SetCredentials("tok-1", json.RawMessage(`{"user_id":1,"user_name":"Budi"}`)); err != nil {
			t.Fatal(err)
		}
	}

	ts := httptest.NewServer(backendMux)
	t.Cleanup(ts.Close)

	srv := api.NewServer(api.Config{
		Store:   st,
		Session: sess,
		Backend: backend.NewClient(ts.URL, sess),
		Port:    "8080",
		Loc:     loc,
	})
	return &testEnv{server: srv.Handler(), session: sess, store: st}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// farmBackend serves one site with a warm dashboard and a soil reading in
// the danger tier.
func farmBackend() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/site", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"site_id":"S1","site_name":"Sawah Utara"}]}`)
	})
	mux.HandleFunc("GET /api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"temperature": [{"sensor":"temperature","sensor_name":"Suhu Udara","read_value":36.2,"read_date":"2025-06-10 08:00:00","value_status":"Warning","status_message":"Suhu terlalu panas","action_message":"Tambah pengairan"}],
			"plants": [{"pl_id": 3, "pl_name": "Padi Ciherang", "age": "40", "phase": "Vegetatif", "timeto_harvest": 70}],
			"last_updated": "2025-06-10 08:00:00"
		}`)
	})
	mux.HandleFunc("GET /api/realtime", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"sensors": [
				{"sensor":"soil_ph_1","sensor_name":"pH Tanah 1","read_value":4.1,"value_status":"Danger","status_message":"Tanah terlalu asam","action_message":"Berikan kapur dolomit"},
				{"sensor":"soil_nitro_1","sensor_name":"Nitrogen 1","read_value":"52.5","value_status":"Normal","action_message":null}
			],
			"last_updated": "2025-06-10 08:05:00"
		}`)
	})
	mux.HandleFunc("GET /api/area-options", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"areas":[{"value":1,"label":"Area 1"},{"value":2,"label":"Area 2"}]}`)
	})
	mux.HandleFunc("POST /api/riwayat2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"ds_id":"7","sensor_name":"pH Tanah 1","read_value":"6.1","read_date":"2025-06-01 08:00:00"},
			{"ds_id":"7","sensor_name":"pH Tanah 1","read_value":6.3,"read_date":"2025-06-02 08:00:00"}
		]`)
	})
	mux.HandleFunc("GET /api/chat/names", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"name_chat":"Pupuk padi","id":1},{"name_chat":"Hama wereng","id":2}]`)
	})
	return mux
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false, http.NewServeMux())

	w := env.do(httptest.NewRequest("GET", "/health", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %q", health.Status)
	}
	if health.LoggedIn {
		t.Error("expected logged out")
	}
	if health.MigrationVersion == 0 {
		t.Error("expected a migration version")
	}
}

func TestRootRedirectsToDashboard(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false, http.NewServeMux())

	w := env.do(httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestProtectedPages_RedirectWhenLoggedOut(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false, http.NewServeMux())

	for _, path := range []string{"/dashboard", "/realtime", "/riwayat", "/plant", "/lahan", "/sensor", "/profil"} {
		w := env.do(httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
			t.Errorf("%s: expected redirect to /login, got %d %q", path, w.Code, w.Header().Get("Location"))
		}
	}

	w := env.do(httptest.NewRequest("GET", "/api/dashboard", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("/api/dashboard: expected 401, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["user_pass"] != "rahasia" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"message":"Username atau password salah"}`)
			return
		}
		io.WriteString(w, `{"token":"fresh-token","user":{"user_id":9,"user_name":"petani"}}`)
	})
	env := newTestEnv(t, false, mux)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantBody string
	}{
		{
			name:     "missing fields",
			form:     url.Values{"user_name": {"petani"}},
			wantCode: http.StatusBadRequest,
			wantBody: "Username dan password wajib diisi.",
		},
		{
			name:     "wrong password",
			form:     url.Values{"user_name": {"petani"}, "user_pass": {"salah"}},
			wantCode: http.StatusUnauthorized,
			wantBody: "Username atau password salah",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(postForm("/login", tt.form))
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("expected %q in body", tt.wantBody)
			}
			if env.session.LoggedIn() {
				t.Error("expected session to stay logged out")
			}
		})
	}

	w := env.do(postForm("/login", url.Values{"user_name": {"petani"}, "user_pass": {"rahasia"}}))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if env.session.Token() != "fresh-token" {
		t.Errorf("expected stored token, got %q", env.session.Token())
	}
	if env.session.User().Name != "petani" {
		t.Errorf("expected stored user, got %+v", env.session.User())
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	env := newTestEnv(t, true, mux)
	if err := env.session.SelectSite("S1"); err != nil {
		t.Fatal(err)
	}

	w := env.do(postForm("/logout", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if env.session.LoggedIn() || env.session.SiteID() != "" {
		t.Error("expected session cleared even though backend logout failed")
	}
}

func TestDashboardPage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true, farmBackend())

	w := env.do(httptest.NewRequest("GET", "/dashboard", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()

	for _, want := range []string{
		"<h1>Dashboard</h1>",
		"Sawah Utara",
		"Suhu terlalu panas",
		"Tanah terlalu asam",
		"Berikan kapur dolomit",
		"Padi Ciherang",
		`class="status-danger"`,
		"52.5",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in dashboard", want)
		}
	}
	if strings.Index(body, "Suhu terlalu panas") > strings.Index(body, "Tanah terlalu asam") {
		t.Error("expected environment warnings before soil warnings")
	}
	if env.session.SiteID() != "S1" {
		t.Errorf("expected first site remembered, got %q", env.session.SiteID())
	}
}

func TestDashboardPage_UnauthorizedExpiresSession(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"Unauthenticated."}`)
	})
	env := newTestEnv(t, true, mux)

	w := env.do(httptest.NewRequest("GET", "/dashboard", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if env.session.LoggedIn() {
		t.Error("expected session expired after 401")
	}
}

func TestHistoryPage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true, farmBackend())

	tests := []struct {
		name    string
		query   string
		want    []string
		notWant []string
	}{
		{
			name:    "no filter submitted",
			query:   "",
			want:    []string{"Area 1", "Area 2"},
			notWant: []string{"Semua filter wajib diisi.", "Unduh CSV"},
		},
		{
			name:  "missing end date",
			query: "?start_date=2025-06-01&areas=1",
			want:  []string{"Semua filter wajib diisi."},
		},
		{
			name:  "complete filter",
			query: "?start_date=2025-06-01&end_date=2025-06-02&areas=1",
			want:  []string{"Unduh CSV", "pH Tanah 1", "/riwayat/export?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest("GET", "/riwayat"+tt.query, nil))
			if w.Code != 200 {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			body := w.Body.String()
			for _, s := range tt.want {
				if !strings.Contains(body, s) {
					t.Errorf("expected %q in body", s)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(body, s) {
					t.Errorf("did not expect %q in body", s)
				}
			}
		})
	}
}

func TestHistoryExport(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true, farmBackend())

	w := env.do(httptest.NewRequest("GET", "/riwayat/export?start_date=2025-06-01&end_date=2025-06-02&areas=1", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "riwayat_S1_2025-06-01_2025-06-02.csv") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	want := "sensor,read_date,read_value\npH Tanah 1,2025-06-01 08:00:00,6.1\npH Tanah 1,2025-06-02 08:00:00,6.3\n"
	if w.Body.String() != want {
		t.Errorf("unexpected csv:\n%s", w.Body.String())
	}
}

func TestChatbot_LoggedOutShowsPrompt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false, http.NewServeMux())

	w := env.do(httptest.NewRequest("GET", "/chatbot", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Login untuk melihat dan menyimpan riwayat chat Anda.") {
		t.Error("expected login prompt")
	}

	w = env.do(postForm("/chatbot/rename", url.Values{"old": {"a"}, "new": {"b"}}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Anda harus login untuk mengganti nama chat.") {
		t.Error("expected not-logged-in rename notice")
	}
}

func TestChatRename(t *testing.T) {
	t.Parallel()
	mux := farmBackend()
	mux.HandleFunc("PUT /api/chat/rename-chat/{title}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["newName"] == "Hama wereng" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"error":"Nama chat sudah digunakan oleh Anda"}`)
			return
		}
		io.WriteString(w, `{"message":"ok"}`)
	})
	mux.HandleFunc("GET /api/chat/history/{title}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"message":"Kapan pupuk?","response":"Pada 21 HST."}]`)
	})
	env := newTestEnv(t, true, mux)

	t.Run("duplicate keeps editor open", func(t *testing.T) {
		form := url.Values{"old": {"Pupuk padi"}, "new": {"Hama wereng"}, "selected": {"Pupuk padi"}}
		w := env.do(postForm("/chatbot/rename", form))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "Nama chat sudah digunakan. Mohon gunakan nama lain.") {
			t.Error("expected duplicate notice")
		}
		if strings.Count(body, `name="new"`) != 1 {
			t.Error("expected exactly one open rename editor")
		}
	})

	t.Run("selection follows new title", func(t *testing.T) {
		form := url.Values{"old": {"Pupuk padi"}, "new": {"Pupuk urea"}, "selected": {"Pupuk padi"}}
		w := env.do(postForm("/chatbot/rename", form))
		if w.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/chatbot?chat=Pupuk+urea" {
			t.Errorf("unexpected redirect %q", loc)
		}
	})

	t.Run("other selection kept", func(t *testing.T) {
		form := url.Values{"old": {"Pupuk padi"}, "new": {"Pupuk urea"}, "selected": {"Hama wereng"}}
		w := env.do(postForm("/chatbot/rename", form))
		if loc := w.Header().Get("Location"); loc != "/chatbot?chat=Hama+wereng" {
			t.Errorf("unexpected redirect %q", loc)
		}
	})
}

func TestAPIRealtime(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true, farmBackend())

	w := env.do(httptest.NewRequest("GET", "/api/realtime?site_id=S1", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var out api.RealtimeJSON
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.SiteID != "S1" || out.LastUpdated != "2025-06-10 08:05:00" {
		t.Errorf("unexpected header fields %+v", out)
	}
	if len(out.Areas) != 1 || out.Areas[0].Area != 1 {
		t.Fatalf("expected one area, got %+v", out.Areas)
	}
	ph := out.Areas[0].Readings["soil_ph"]
	if ph.Value != 4.1 || ph.ValueStatus != "Danger" {
		t.Errorf("unexpected pH reading %+v", ph)
	}
	if n := out.Areas[0].Readings["fosfor"]; n.Sensor != "" {
		t.Errorf("expected no phosphorus reading, got %+v", n)
	}
	if nitro := out.Areas[0].Readings["nitrogen"]; nitro.ActionMessage != "-" {
		t.Errorf("expected null action rendered as -, got %q", nitro.ActionMessage)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].SensorLabel != "pH Tanah 1" {
		t.Errorf("unexpected warnings %+v", out.Warnings)
	}
}
