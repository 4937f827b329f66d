package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/watchzerg/magnet-picker-sub000/internal/adapter/mdadapter"
	"github.com/watchzerg/magnet-picker-sub000/internal/adapter/tpladapter"
	"github.com/watchzerg/magnet-picker-sub000/internal/config"
	"github.com/watchzerg/magnet-picker-sub000/internal/engine"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
	"github.com/watchzerg/magnet-picker-sub000/internal/rulefile"
	"github.com/watchzerg/magnet-picker-sub000/internal/service/pick"
	"github.com/watchzerg/magnet-picker-sub000/internal/storage/page"
)

type pickOptions struct {
	cfgPath    string
	rulesFile  string
	workDir    string
	reportFile string
	target     int
}

func newPickCmd() *cobra.Command {
	var opts pickOptions
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Pick from a pages directory with a rules file, without redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.cfgPath = cfgFileName

			return runPick(cmd.Context(), afero.NewOsFs(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.rulesFile, "rules", "r", "", "Rules file, overrides rules_file from config")
	cmd.Flags().StringVarP(&opts.workDir, "pages", "p", "", "Pages directory, overrides scanner.work_dir from config")
	cmd.Flags().StringVar(&opts.reportFile, "html", "", "Also write the report as HTML to this file")
	cmd.Flags().IntVarP(&opts.target, "target", "n", 0, "Number of candidates to pick, overrides the settings")

	return cmd
}

// runPick scans the pages, picks with the rules file and writes the Markdown report to w.
func runPick(ctx context.Context, fs afero.Fs, w io.Writer, opts pickOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(fs, opts.cfgPath)
	if err != nil {
		return err
	}

	if opts.rulesFile != "" {
		cfg.RulesFile = opts.rulesFile
	}
	if opts.workDir != "" {
		cfg.ScannerConfig.WorkDir = opts.workDir
	}
	if cfg.RulesFile == "" {
		return errors.New("rules file is not set")
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	set, err := rulefile.Load(fs, cfg.RulesFile)
	if err != nil {
		return err
	}

	settings := cfg.Selection
	if set.Settings != nil {
		settings = *set.Settings
	}
	if opts.target > 0 {
		settings.TargetCount = opts.target
	}

	mda := mdadapter.NewPageAdapter(log)
	candidates, err := page.NewPageStorageWithFS(fs, mda, &cfg.ScannerConfig, log).Scan(ctx)
	if err != nil {
		return err
	}

	active := engine.ActiveRules(set.Rules)
	if skipped := len(set.Rules) - len(active); skipped > 0 {
		log.Warn("Some rules are disabled or invalid and were not applied", slog.Int("count", skipped))
	}

	res := engine.SelectScored(engine.ScoreCandidates(candidates, active), settings)

	sel := &entity.Selection{
		CandidateIDs: make([]string, len(res.Candidates)),
		Required:     res.Required,
		Preferred:    res.Preferred,
		Fallback:     res.Fallback,
		Pool:         len(candidates),
		CreatedAt:    time.Now().UTC(),
	}
	for i, c := range res.Candidates {
		sel.CandidateIDs[i] = c.ID
	}

	report := pick.BuildReport(sel, candidates, active, settings)
	if err := mda.Markdown(w, report); err != nil {
		return err
	}

	if opts.reportFile == "" {
		return nil
	}

	tpl, err := tpladapter.NewTplAdapter(fs, cfg.ReportTmpl, mda)
	if err != nil {
		return err
	}

	f, err := fs.Create(opts.reportFile)
	if err != nil {
		return fmt.Errorf("cannot create report file %s: %w", opts.reportFile, err)
	}
	defer f.Close()

	return tpl.HTML(f, report)
}
