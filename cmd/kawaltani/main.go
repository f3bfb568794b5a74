package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/chat"
	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/session"
	"github.com/kawaltani/kawaltani/internal/store"
)

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `name:"env-file" default:".env" help:"Path to a .env file with KAWALTANI_* settings."`

	APIURL    string `name:"api-url" env:"KAWALTANI_API_URL" default:"http://localhost:8000" help:"KawalTani backend base URL."`
	DetectURL string `name:"detect-url" env:"KAWALTANI_DETECT_URL" default:"http://localhost:5000" help:"Rice phase detection service base URL."`
	DB        string `name:"db" env:"KAWALTANI_DB" default:"data/kawaltani.db" help:"Path to SQLite database."`
	TZ        string `name:"tz" env:"KAWALTANI_TZ" default:"Asia/Jakarta" help:"Timezone used for backend timestamps."`

	Serve       ServeCmd       `cmd:"" help:"Run the dashboard web server and background poller."`
	Poll        PollCmd        `cmd:"" help:"Poll the selected site once and record warnings."`
	Login       LoginCmd       `cmd:"" help:"Log in to the backend and store the session."`
	Logout      LogoutCmd      `cmd:"" help:"Revoke the token and clear the stored session."`
	Dashboard   DashboardCmd   `cmd:"" help:"Show the dashboard summary for a site."`
	Realtime    RealtimeCmd    `cmd:"" help:"Show the latest soil readings grouped by area."`
	History     HistoryCmd     `cmd:"" help:"Show or export historical readings."`
	Sites       SitesCmd       `cmd:"" help:"List sites."`
	SelectSite  SelectSiteCmd  `cmd:"" name:"select-site" help:"Remember a site as the selected one."`
	Sensors     SensorsCmd     `cmd:"" help:"List sensor thresholds for a site."`
	Plants      PlantsCmd      `cmd:"" help:"List plants."`
	Chats       ChatsCmd       `cmd:"" help:"Manage chatbot sessions."`
	DetectPhase DetectPhaseCmd `cmd:"" name:"detect-phase" help:"Detect the rice growth phase in an image."`
}

// App is the wiring shared by every command.
type App struct {
	ctx     context.Context
	cli     *CLI
	db      *sql.DB
	store   *store.Store
	session *session.Manager
	backend *backend.Client
	farm    *farm.Service
	chats   *chat.History
	loc     *time.Location
	out     io.Writer
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("kawaltani"),
		kong.Description("KawalTani farm monitoring dashboard."),
		kong.UsageOnError(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, &cli)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer app.db.Close()

	kctx.FatalIfErrorf(kctx.Run(app))
}

func newApp(ctx context.Context, cli *CLI) (*App, error) {
	loc := loadLocation(cli.TZ)

	if dir := filepath.Dir(cli.DB); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := store.Open(cli.DB)
	if err != nil {
		return nil, err
	}
	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sess, err := session.Load(st)
	if err != nil {
		db.Close()
		return nil, err
	}
	client := backend.NewClient(cli.APIURL, sess)

	return &App{
		ctx:     ctx,
		cli:     cli,
		db:      db,
		store:   st,
		session: sess,
		backend: client,
		farm:    farm.NewService(client, sess, loc),
		chats:   chat.NewHistory(client, sess, loc),
		loc:     loc,
		out:     os.Stdout,
	}, nil
}

// loadLocation loads the named zone, falling back to a fixed WIB offset when
// the host has no zone database.
func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC+7: %v", name, err)
		return time.FixedZone("WIB", 7*3600)
	}
	return loc
}
