package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/watchzerg/magnet-picker-sub000/internal/adapter/mdadapter"
	"github.com/watchzerg/magnet-picker-sub000/internal/adapter/tpladapter"
	"github.com/watchzerg/magnet-picker-sub000/internal/config"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
	httphandler "github.com/watchzerg/magnet-picker-sub000/internal/handler/http"
	"github.com/watchzerg/magnet-picker-sub000/internal/repository/pick"
	"github.com/watchzerg/magnet-picker-sub000/internal/rulefile"
	srvpick "github.com/watchzerg/magnet-picker-sub000/internal/service/pick"
	srvrule "github.com/watchzerg/magnet-picker-sub000/internal/service/rule"
	"github.com/watchzerg/magnet-picker-sub000/internal/storage/page"
)

const (
	scanTimeout     = time.Minute
	exportTimeout   = 5 * time.Second
	importTimeout   = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type picker interface {
	Scan(ctx context.Context) (int, error)
	Pick(ctx context.Context) (*entity.Selection, []*entity.Candidate, error)
	Settings(ctx context.Context) (entity.SelectionSettings, error)
}

type ruleRepository interface {
	ListRules(ctx context.Context) ([]*entity.Rule, error)
}

type ruleImporter interface {
	Import(ctx context.Context, rules []*entity.Rule) ([]*srvrule.RuleView, error)
}

type settingsSaver interface {
	SaveSettings(ctx context.Context, settings entity.SelectionSettings) error
}

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	picker  picker
	rules   ruleRepository
	fs      afero.Fs
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
		fs:      afero.NewOsFs(),
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: a.cfg.SlogLevel()}))
	a.log = log

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		panic(err)
	}

	rdb := redis.NewClient(opt)
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		panic(err)
	}

	repo, err := pick.NewPickRepository(rdb, log)
	if err != nil {
		panic(err)
	}
	a.rules = repo

	mda := mdadapter.NewPageAdapter(log)
	store := page.NewPageStorageWithFS(a.fs, mda, &a.cfg.ScannerConfig, log)

	ruleSrv := srvrule.NewRuleService(repo, log)
	tpl, err := tpladapter.NewTplAdapter(a.fs, a.cfg.ReportTmpl, mda)
	if err != nil {
		panic(err)
	}

	pickSrv := srvpick.NewPickService(store, repo, tpl, a.cfg.Selection, log)
	a.picker = pickSrv

	if err := a.importRules(ruleSrv, pickSrv); err != nil {
		log.Error("Cannot import rules file", slog.String("path", a.cfg.RulesFile), slog.Any("error", err))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /rules/{$}", httphandler.NewListRulesHandler(ruleSrv, log))
	mux.Handle("POST /rules/{$}", httphandler.NewAddRuleHandler(ruleSrv, log))
	mux.Handle("POST /rules/check/{$}", httphandler.NewCheckRuleHandler(ruleSrv, log))
	mux.Handle("POST /rules/order/{$}", httphandler.NewReorderRulesHandler(ruleSrv, log))
	mux.Handle("PUT /rules/{id}/{$}", httphandler.NewUpdateRuleHandler(ruleSrv, log))
	mux.Handle("DELETE /rules/{id}/{$}", httphandler.NewDeleteRuleHandler(ruleSrv, log))
	mux.Handle("POST /rules/{id}/enable/{$}", httphandler.NewEnableRuleHandler(ruleSrv, true, log))
	mux.Handle("POST /rules/{id}/disable/{$}", httphandler.NewEnableRuleHandler(ruleSrv, false, log))

	mux.Handle("GET /settings/{$}", httphandler.NewGetSettingsHandler(pickSrv, log))
	mux.Handle("PUT /settings/{$}", httphandler.NewSaveSettingsHandler(pickSrv, log))

	mux.Handle("POST /scan/{$}", httphandler.NewScanHandler(pickSrv, scanTimeout, log))
	mux.Handle("POST /pick/{$}", httphandler.NewPickHandler(pickSrv, log))
	mux.Handle("GET /scores/{$}", httphandler.NewScoresHandler(pickSrv, log))
	mux.Handle("GET /selection/{$}", httphandler.NewSelectionHandler(pickSrv, log))
	mux.Handle("GET /report/{$}", httphandler.NewReportHandler(pickSrv, log))

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// importRules seeds an empty repository from the configured rules file.
func (a *App) importRules(ruleSrv ruleImporter, settings settingsSaver) error {
	if a.cfg.RulesFile == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()

	stored, err := a.rules.ListRules(ctx)
	if err != nil {
		return err
	}

	if len(stored) > 0 {
		a.log.Debug("Rules are already stored, skip import", slog.Int("count", len(stored)))

		return nil
	}

	set, err := rulefile.Load(a.fs, a.cfg.RulesFile)
	if err != nil {
		return err
	}

	if _, err := ruleSrv.Import(ctx, set.Rules); err != nil {
		return err
	}

	if set.Settings != nil {
		if err := settings.SaveSettings(ctx, *set.Settings); err != nil {
			return err
		}
	}

	a.log.Info("Rules imported", slog.String("path", a.cfg.RulesFile), slog.Int("count", len(set.Rules)))

	return nil
}

// Rescan reads the pages again and picks from the new candidates.
func (a *App) Rescan() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	fmt.Println("Scanning...")

	n, err := a.picker.Scan(ctx)
	if err != nil {
		fmt.Printf("Cannot scan pages: %s\n", err)

		return
	}

	fmt.Printf("Found %d candidates.\n", n)

	sel, picked, err := a.picker.Pick(ctx)
	if err != nil {
		fmt.Printf("Cannot pick: %s\n", err)

		return
	}

	for i, c := range picked {
		fmt.Printf("%d. %s (%s)\n", i+1, c.Name, humanize.IBytes(uint64(max(c.Size, 0))))
	}

	fmt.Printf("Done. required: %d, preferred: %d, fallback: %d\n", sel.Required, sel.Preferred, sel.Fallback)
}

// Export writes the stored rules and settings back to the rules file.
func (a *App) Export() {
	if a.cfg.RulesFile == "" {
		a.log.Warn("Rules file is not configured, nothing to export")

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	rules, err := a.rules.ListRules(ctx)
	if err != nil {
		a.log.Error("Cannot list rules", slog.Any("error", err))

		return
	}

	settings, err := a.picker.Settings(ctx)
	if err != nil {
		a.log.Error("Cannot get settings", slog.Any("error", err))

		return
	}

	if err := rulefile.Save(a.fs, a.cfg.RulesFile, &entity.RuleSet{Settings: &settings, Rules: rules}); err != nil {
		a.log.Error("Cannot export rules", slog.Any("error", err))

		return
	}

	a.log.Info("Rules exported", slog.String("path", a.cfg.RulesFile), slog.Int("count", len(rules)))
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.srv == nil {
		return
	}

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server", slog.Any("error", err))
	}
}
