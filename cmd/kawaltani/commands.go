package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/kawaltani/kawaltani/internal/advisor"
	"github.com/kawaltani/kawaltani/internal/api"
	"github.com/kawaltani/kawaltani/internal/backend"
	"github.com/kawaltani/kawaltani/internal/chat"
	"github.com/kawaltani/kawaltani/internal/farm"
	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/phase"
	"github.com/kawaltani/kawaltani/internal/poller"
	"github.com/kawaltani/kawaltani/internal/readings"
)

var errNotLoggedIn = errors.New("not logged in, run `kawaltani login` first")

func (a *App) requireLogin() error {
	if !a.session.LoggedIn() {
		return errNotLoggedIn
	}
	return nil
}

// site returns id when set, otherwise the selected site.
func (a *App) site(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	siteID, err := a.farm.SelectedSite(a.ctx)
	if err != nil {
		return "", errors.New(farm.Notice(err))
	}
	return siteID, nil
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

type ServeCmd struct {
	Port         string        `env:"KAWALTANI_PORT" default:"8080" help:"HTTP server port."`
	PollInterval time.Duration `name:"poll-interval" env:"KAWALTANI_POLL_INTERVAL" default:"60s" help:"How often the selected site is polled."`
	NoPoll       bool          `name:"no-poll" help:"Disable polling (server only, for local dev)."`
	Assets       string        `env:"KAWALTANI_ASSETS" default:"assets" help:"Directory served at /assets (device and phase images)."`
	OpenAIKey    string        `name:"openai-api-key" env:"OPENAI_API_KEY" help:"Enables generated advisories."`
	CacheDir     string        `name:"advisory-cache" env:"KAWALTANI_ADVISORY_CACHE" default:"data/advisories" help:"Directory for cached advisories."`
	CacheMaxAge  time.Duration `name:"advisory-max-age" default:"6h" help:"How long a cached advisory is reused."`
}

func (c *ServeCmd) Run(app *App) error {
	p := poller.New(app.store, app.farm, app.session, c.PollInterval)
	adv := advisor.New(c.OpenAIKey, advisor.NewCache(c.CacheDir, c.CacheMaxAge))

	server := api.NewServer(api.Config{
		Store:     app.store,
		Session:   app.session,
		Backend:   app.backend,
		Detector:  phase.NewDetector(app.cli.DetectURL),
		Advisor:   adv,
		Poller:    p,
		Port:      c.Port,
		Loc:       app.loc,
		AssetsDir: c.Assets,
	})

	if !c.NoPoll {
		go p.Run(app.ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(app.ctx)
}

type PollCmd struct {
	Runs int `help:"List the most recent poll runs instead of polling." default:"0"`
}

func (c *PollCmd) Run(app *App) error {
	if c.Runs > 0 {
		return c.listRuns(app)
	}
	if err := app.requireLogin(); err != nil {
		return err
	}
	if _, err := app.site(""); err != nil {
		return err
	}
	p := poller.New(app.store, app.farm, app.session, poller.DefaultInterval)
	if err := p.Poll(app.ctx); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	if view, ok := p.Latest(app.session.SiteID()); ok {
		fmt.Fprintf(app.out, "polled site %s: %d warnings\n", view.SiteID, len(view.Warnings))
	}
	return nil
}

func (c *PollCmd) listRuns(app *App) error {
	runs, err := app.store.RecentPollRuns(c.Runs)
	if err != nil {
		return fmt.Errorf("list poll runs: %w", err)
	}
	w := app.table()
	fmt.Fprintln(w, "ID\tSTARTED\tSITE\tREADINGS\tWARNINGS\tRESULT")
	for _, r := range runs {
		result := "ok"
		if !r.Success {
			result = "failed"
			if r.ErrorMessage.Valid {
				result += ": " + r.ErrorMessage.String
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.In(app.loc).Format("2006-01-02 15:04"), orDash(r.SiteID),
			r.Readings.Int64, r.Warnings.Int64, result)
	}
	return w.Flush()
}

type LoginCmd struct {
	Username string `arg:"" optional:"" help:"Backend username. Prompted when omitted."`
	Password string `env:"KAWALTANI_PASSWORD" help:"Password. Prompted when omitted."`
}

func (c *LoginCmd) Run(app *App) error {
	username := strings.TrimSpace(c.Username)
	if username == "" {
		fmt.Print("Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	password := c.Password
	if password == "" {
		fmt.Print("Password: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(b)
	}
	if username == "" || password == "" {
		return errors.New("Username dan password wajib diisi.")
	}

	creds, err := app.backend.Login(app.ctx, username, password)
	if err != nil {
		return errors.New(backend.Message(err, "Login gagal"))
	}
	if err := app.session.SetCredentials(creds.Token, creds.User); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "logged in as %s\n", app.session.User().Name)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(app *App) error {
	if app.session.LoggedIn() {
		if err := app.backend.Logout(app.ctx); err != nil {
			log.Printf("logout: %v", err)
		}
	}
	if err := app.session.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(app.out, "logged out")
	return nil
}

type DashboardCmd struct {
	Site string `short:"s" help:"Site ID (defaults to the selected site)."`
}

func (c *DashboardCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	siteID, err := app.site(c.Site)
	if err != nil {
		return err
	}
	view, err := app.farm.Dashboard(app.ctx, siteID)
	if err != nil {
		return errors.New(farm.Notice(err))
	}
	if view.DashboardErr != nil {
		log.Printf("dashboard: %v", view.DashboardErr)
	}
	if view.RealtimeErr != nil {
		log.Printf("realtime: %v", view.RealtimeErr)
	}

	fmt.Fprintf(app.out, "Site %s, last updated %s\n\n", siteID, orDash(view.Dashboard.LastUpdated))

	tw := app.table()
	for _, env := range []struct {
		label, unit string
		r           *models.SensorReading
	}{
		{"Suhu", "°C", view.Temperature},
		{"Kelembapan", "%", view.Humidity},
		{"Angin", "m/s", view.Wind},
		{"Cahaya", "lux", view.Lux},
		{"Hujan", "mm", view.Rain},
	} {
		if env.r == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\n", env.label, readings.FormatValue(env.r.Value), env.unit, env.r.Status.Label())
	}
	tw.Flush()

	var growth *phase.Phase
	for i, p := range view.Dashboard.Plants {
		fmt.Fprintf(app.out, "\nTanaman: %s, umur %s HST, fase %s, panen dalam %s hari\n",
			p.Name, readings.FormatValue(p.Age.Float64()), orDash(p.Phase), readings.FormatValue(p.TimeToHarvest.Float64()))
		if i == 0 {
			g := phase.ForAge(p.Age.Float64())
			growth = &g
		}
	}

	fmt.Fprintln(app.out, "\nNutrisi tanah:")
	printRows(app, view.SoilRows(), readings.NutrientKinds)

	printWarnings(app, view.Warnings)
	if len(view.Warnings) > 0 {
		fmt.Fprintf(app.out, "\nRekomendasi:\n%s\n", advisor.Rules(view.Warnings, growth).Text)
	}

	for _, pt := range view.Dashboard.Todos {
		for _, todo := range pt.Todos {
			fmt.Fprintf(app.out, "Jadwal %s: %s %s\n", todo.Date, todo.Title, todo.FertilizerType)
		}
	}
	return nil
}

type RealtimeCmd struct {
	Site string `short:"s" help:"Site ID (defaults to the selected site)."`
}

func (c *RealtimeCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	siteID, err := app.site(c.Site)
	if err != nil {
		return err
	}
	view, err := app.farm.Realtime(app.ctx, siteID)
	if err != nil {
		return errors.New(farm.Notice(err))
	}
	fmt.Fprintf(app.out, "Site %s, last updated %s\n\n", siteID, orDash(view.LastUpdated))
	printRows(app, view.Rows(), view.Grouping.Present())
	printWarnings(app, view.Grouping.Warnings)
	return nil
}

func printRows(app *App, rows []readings.Row, kinds []readings.Kind) {
	if len(rows) == 0 {
		fmt.Fprintln(app.out, "no readings")
		return
	}
	tw := app.table()
	fmt.Fprint(tw, "AREA")
	for _, k := range kinds {
		fmt.Fprintf(tw, "\t%s", strings.ToUpper(k.Label()))
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		fmt.Fprintf(tw, "%d", row.Area)
		for _, k := range kinds {
			r, ok := row.Get(k)
			switch {
			case !ok:
				fmt.Fprint(tw, "\t-")
			case r.Status.Alerting():
				fmt.Fprintf(tw, "\t%s (%s)", readings.FormatValue(r.Value), r.Status.Label())
			default:
				fmt.Fprintf(tw, "\t%s", readings.FormatValue(r.Value))
			}
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func printWarnings(app *App, warnings []models.Warning) {
	if len(warnings) == 0 {
		fmt.Fprintln(app.out, "\nTidak ada peringatan.")
		return
	}
	fmt.Fprintln(app.out, "\nPeringatan:")
	tw := app.table()
	for _, w := range warnings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.Severity.Label(), w.SensorLabel, w.StatusMessage, w.ActionMessage)
	}
	tw.Flush()
}

type HistoryCmd struct {
	Site  string   `short:"s" help:"Site ID (defaults to the selected site)."`
	Start string   `required:"" help:"Start date (YYYY-MM-DD)."`
	End   string   `required:"" help:"End date (YYYY-MM-DD)."`
	Areas []string `name:"area" short:"a" help:"Area to include. Repeatable."`
	CSV   bool     `name:"csv" help:"Write sensor,read_date,read_value rows."`
}

func (c *HistoryCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	siteID, err := app.site(c.Site)
	if err != nil {
		return err
	}
	series, err := app.farm.History(app.ctx, siteID, models.HistoryFilter{
		Areas:     c.Areas,
		StartDate: c.Start,
		EndDate:   c.End,
	})
	if err != nil {
		return errors.New(farm.Notice(err))
	}
	if c.CSV {
		return readings.WriteCSV(app.out, series)
	}

	tw := app.table()
	fmt.Fprintln(tw, "SENSOR\tPOINTS\tFIRST\tLAST\tLAST VALUE")
	for _, s := range series {
		if len(s.Data) == 0 {
			continue
		}
		first, last := s.Data[0], s.Data[len(s.Data)-1]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", s.Name, len(s.Data), first.X, last.X, readings.FormatValue(last.Y))
	}
	return tw.Flush()
}

type SitesCmd struct{}

func (c *SitesCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	sites, selected, err := app.farm.Sites(app.ctx)
	if err != nil {
		return errors.New(farm.Notice(err))
	}
	tw := app.table()
	fmt.Fprintln(tw, "\tID\tNAME\tADDRESS")
	for _, s := range sites {
		mark := ""
		if s.ID.String() == selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, s.ID, s.Name, orDash(s.Address))
	}
	return tw.Flush()
}

type SelectSiteCmd struct {
	ID string `arg:"" help:"Site ID."`
}

func (c *SelectSiteCmd) Run(app *App) error {
	if err := app.farm.Select(c.ID); err != nil {
		return errors.New(farm.Notice(err))
	}
	fmt.Fprintf(app.out, "selected site %s\n", c.ID)
	return nil
}

type SensorsCmd struct {
	Site string `short:"s" help:"Site ID (defaults to the selected site)."`
}

func (c *SensorsCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	siteID, err := app.site(c.Site)
	if err != nil {
		return err
	}
	sensors, err := app.backend.Sensors(app.ctx, siteID)
	if err != nil {
		return errors.New(backend.Message(err, "Gagal memuat data."))
	}
	tw := app.table()
	fmt.Fprintln(tw, "ID\tNAME\tNORMAL\tNORMAL RANGE\tWARN RANGE")
	for _, s := range sensors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s - %s\t%s - %s\n", s.ID, s.Name, s.NormalValue, s.MinNorm, s.MaxNorm, s.MinWarn, s.MaxWarn)
	}
	return tw.Flush()
}

type PlantsCmd struct{}

func (c *PlantsCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	plants, err := app.backend.Plants(app.ctx)
	if err != nil {
		return errors.New(backend.Message(err, "Gagal memuat data."))
	}
	tw := app.table()
	fmt.Fprintln(tw, "ID\tNAME\tPLANTED\tAREA")
	for _, p := range plants {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, orDash(p.DatePlanting), p.Area)
	}
	return tw.Flush()
}

type ChatsCmd struct {
	List   ChatsListCmd   `cmd:"" default:"1" help:"List sessions grouped by day."`
	Show   ChatsShowCmd   `cmd:"" help:"Show a session's messages."`
	Rename ChatsRenameCmd `cmd:"" help:"Rename a session."`
	Delete ChatsDeleteCmd `cmd:"" help:"Delete a session."`
	Send   ChatsSendCmd   `cmd:"" help:"Send a message, starting a new session when no title is given."`
}

type ChatsListCmd struct{}

func (c *ChatsListCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	cats, err := app.chats.List(app.ctx)
	if err != nil {
		return fmt.Errorf("Gagal memuat daftar chat: %w", err)
	}
	if cats.Len() == 0 {
		fmt.Fprintln(app.out, "no chats")
		return nil
	}
	for _, g := range cats.Groups() {
		if len(g.Sessions) == 0 {
			continue
		}
		fmt.Fprintf(app.out, "%s\n", g.Category)
		for _, s := range g.Sessions {
			fmt.Fprintf(app.out, "  %s  %s\n", s.CreatedAt.In(app.loc).Format("15:04"), s.Title)
		}
	}
	return nil
}

type ChatsShowCmd struct {
	Title string `arg:"" help:"Session title."`
}

func (c *ChatsShowCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	cats, err := app.chats.List(app.ctx)
	if err != nil {
		return fmt.Errorf("Gagal memuat daftar chat: %w", err)
	}
	sess, ok := cats.Find(c.Title)
	if !ok {
		return fmt.Errorf("chat %q tidak ditemukan", c.Title)
	}
	messages, err := app.chats.Messages(app.ctx, sess.Title)
	if err != nil {
		return fmt.Errorf("Gagal memuat riwayat chat: %w", err)
	}
	fmt.Fprintf(app.out, "%s (%s)\n\n", sess.Title, sess.CreatedAt.In(app.loc).Format("2006-01-02 15:04"))
	for _, m := range messages {
		who := "Anda"
		if m.Role == models.RoleBot {
			who = "KawalTani"
		}
		fmt.Fprintf(app.out, "%s: %s\n\n", who, m.Text)
	}
	return nil
}

type ChatsRenameCmd struct {
	Old string `arg:"" help:"Current title."`
	New string `arg:"" help:"New title."`
}

func (c *ChatsRenameCmd) Run(app *App) error {
	title, _, err := app.chats.Rename(app.ctx, c.Old, c.New)
	if err != nil {
		return errors.New(chat.Notice(err))
	}
	fmt.Fprintf(app.out, "renamed to %q\n", title)
	return nil
}

type ChatsDeleteCmd struct {
	Title string `arg:"" help:"Session title."`
}

func (c *ChatsDeleteCmd) Run(app *App) error {
	if _, err := app.chats.Delete(app.ctx, c.Title); err != nil {
		return errors.New(chat.Notice(err))
	}
	fmt.Fprintf(app.out, "deleted %q\n", c.Title)
	return nil
}

type ChatsSendCmd struct {
	Title   string   `short:"t" help:"Session to continue. Omit to start a new one."`
	Message []string `arg:"" help:"Message text."`
}

func (c *ChatsSendCmd) Run(app *App) error {
	if err := app.requireLogin(); err != nil {
		return err
	}
	reply, err := app.chats.Send(app.ctx, c.Title, strings.Join(c.Message, " "))
	if err != nil {
		return fmt.Errorf("Terjadi kesalahan saat memproses pesan: %w", err)
	}
	if c.Title == "" && reply.Title != "" {
		fmt.Fprintf(app.out, "[%s]\n", reply.Title)
	}
	fmt.Fprintln(app.out, reply.Response)
	return nil
}

type DetectPhaseCmd struct {
	Image string `arg:"" type:"existingfile" help:"Photo of the rice field."`
}

func (c *DetectPhaseCmd) Run(app *App) error {
	f, err := os.Open(c.Image)
	if err != nil {
		return err
	}
	defer f.Close()

	detector := phase.NewDetector(app.cli.DetectURL)
	result, err := detector.Detect(app.ctx, filepath.Base(c.Image), f)
	if err != nil {
		return errors.New(phase.Notice(err))
	}
	p, ok := result.Phase()
	if !ok {
		return fmt.Errorf("Fase tidak dikenali: %q", result.Key)
	}
	fmt.Fprintf(app.out, "%s (%s)\n%s\n\nPemupukan: %s\nHama: %s\n", p.Title, p.Range, p.Description, p.Fertilizer, p.Pest)
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
