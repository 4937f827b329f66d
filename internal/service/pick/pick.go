package pick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/watchzerg/magnet-picker-sub000/internal/common"
	"github.com/watchzerg/magnet-picker-sub000/internal/config"
	"github.com/watchzerg/magnet-picker-sub000/internal/engine"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const (
	serviceName = "pick"
	reportTitle = "Magnet selection"

	TierRequired  = "required"
	TierPreferred = "preferred"
	TierFallback  = "fallback"
)

type CandidateStorage interface {
	Scan(ctx context.Context) ([]*entity.Candidate, error)
}

type PickRepository interface {
	ListRules(ctx context.Context) ([]*entity.Rule, error)
	GetSettings(ctx context.Context) (entity.SelectionSettings, error)
	SaveSettings(ctx context.Context, settings entity.SelectionSettings) error
	SaveCandidates(ctx context.Context, candidates []*entity.Candidate) error
	Candidates(ctx context.Context) ([]*entity.Candidate, error)
	GetSelection(ctx context.Context) (*entity.Selection, error)
	SaveSelection(ctx context.Context, sel *entity.Selection) error
}

type ReportRenderer interface {
	HTML(w io.Writer, report *entity.Report) error
}

// ScoreView is a scored candidate together with the rule steps that produced the score.
type ScoreView struct {
	entity.MagnetScore
	Steps []engine.Step `json:"steps"`
}

type pickService struct {
	store    CandidateStorage
	repo     PickRepository
	renderer ReportRenderer
	defaults entity.SelectionSettings
	log      *slog.Logger
}

func NewPickService(store CandidateStorage, repo PickRepository, renderer ReportRenderer, defaults entity.SelectionSettings, log *slog.Logger) *pickService {
	return &pickService{
		store:    store,
		repo:     repo,
		renderer: renderer,
		defaults: defaults,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// Scan reads the saved pages and replaces the stored candidates.
func (p *pickService) Scan(ctx context.Context) (int, error) {
	candidates, err := p.store.Scan(ctx)
	if err != nil {
		p.log.Error("Cannot scan", slog.Any("error", err))

		return 0, fmt.Errorf("cannot scan pages: %w", err)
	}

	if len(candidates) < 1 {
		p.log.Error("Cannot find candidates")

		return 0, common.ErrNoCandidatesFoundError
	}

	p.log.Info("Scan pages", slog.Int("count", len(candidates)))

	if err := p.repo.SaveCandidates(ctx, candidates); err != nil {
		p.log.Error("Cannot save candidates", slog.Any("error", err))

		return 0, fmt.Errorf("cannot save candidates: %w", err)
	}

	return len(candidates), nil
}

// Settings returns the stored selection settings, or the configured defaults.
func (p *pickService) Settings(ctx context.Context) (entity.SelectionSettings, error) {
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, common.ErrSettingsNotFoundError) {
			return p.defaults, nil
		}

		p.log.Error("Cannot get settings", slog.Any("error", err))

		return settings, fmt.Errorf("cannot get settings: %w", err)
	}

	return settings, nil
}

func (p *pickService) SaveSettings(ctx context.Context, settings entity.SelectionSettings) error {
	if err := config.Validate(settings); err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidSettingsError, err)
	}

	if settings.RequiredThreshold < settings.PreferredThreshold {
		p.log.Warn("Required threshold is below preferred threshold",
			slog.Int64("required", settings.RequiredThreshold),
			slog.Int64("preferred", settings.PreferredThreshold))
	}

	if err := p.repo.SaveSettings(ctx, settings); err != nil {
		p.log.Error("Cannot save settings", slog.Any("error", err))

		return fmt.Errorf("cannot save settings: %w", err)
	}

	return nil
}

// Scores returns every stored candidate scored by the active rules, best first.
func (p *pickService) Scores(ctx context.Context) ([]*ScoreView, error) {
	candidates, rules, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*ScoreView, len(candidates))
	for i, c := range candidates {
		ms, steps := engine.Explain(c, rules)
		views[i] = &ScoreView{MagnetScore: ms, Steps: steps}
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].FinalScore > views[j].FinalScore
	})

	return views, nil
}

// Pick selects from the stored candidates and saves the result.
func (p *pickService) Pick(ctx context.Context) (*entity.Selection, []*entity.Candidate, error) {
	candidates, rules, err := p.load(ctx)
	if err != nil {
		return nil, nil, err
	}

	settings, err := p.Settings(ctx)
	if err != nil {
		return nil, nil, err
	}

	res := engine.SelectScored(engine.ScoreCandidates(candidates, rules), settings)

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

	if err := p.repo.SaveSelection(ctx, sel); err != nil {
		p.log.Error("Cannot save selection", slog.Any("error", err))

		return nil, nil, fmt.Errorf("cannot save selection: %w", err)
	}

	p.log.Info("Picked",
		slog.Int("pool", sel.Pool),
		slog.Int("picked", len(sel.CandidateIDs)),
		slog.Int("required", sel.Required),
		slog.Int("preferred", sel.Preferred),
		slog.Int("fallback", sel.Fallback))

	return sel, res.Candidates, nil
}

func (p *pickService) Selection(ctx context.Context) (*entity.Selection, error) {
	sel, err := p.repo.GetSelection(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrSelectionNotFoundError) {
			p.log.Error("Cannot get selection", slog.Any("error", err))
		}

		return nil, fmt.Errorf("cannot get selection: %w", err)
	}

	return sel, nil
}

// Report renders the last selection as HTML.
func (p *pickService) Report(ctx context.Context, w io.Writer) error {
	sel, err := p.Selection(ctx)
	if err != nil {
		return err
	}

	candidates, err := p.repo.Candidates(ctx)
	if err != nil && !errors.Is(err, common.ErrNoCandidatesFoundError) {
		return fmt.Errorf("cannot get candidates: %w", err)
	}

	rules, err := p.repo.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("cannot list rules: %w", err)
	}

	settings, err := p.Settings(ctx)
	if err != nil {
		return err
	}

	report := BuildReport(sel, candidates, engine.ActiveRules(rules), settings)

	if err := p.renderer.HTML(w, report); err != nil {
		p.log.Error("Cannot render report", slog.Any("error", err))

		return fmt.Errorf("cannot render report: %w", err)
	}

	return nil
}

// BuildReport lays out a selection for rendering. Candidates that are no longer stored
// are left out.
func BuildReport(sel *entity.Selection, candidates []*entity.Candidate, active []*entity.Rule, settings entity.SelectionSettings) *entity.Report {
	byID := make(map[string]*entity.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	report := &entity.Report{
		Title:     reportTitle,
		CreatedAt: sel.CreatedAt,
		Pool:      sel.Pool,
		Required:  formatSize(float64(settings.RequiredThreshold)),
		Preferred: formatSize(float64(settings.PreferredThreshold)),
		Target:    settings.TargetCount,
		Tiers: []entity.ReportTier{
			{Name: TierRequired, Count: sel.Required},
			{Name: TierPreferred, Count: sel.Preferred},
			{Name: TierFallback, Count: sel.Fallback},
		},
	}

	for i, id := range sel.CandidateIDs {
		c, ok := byID[id]
		if !ok {
			continue
		}

		ms := engine.Score(c, active)
		report.Rows = append(report.Rows, entity.ReportRow{
			Name:  c.Name,
			Link:  c.Link,
			Size:  formatSize(float64(c.Size)),
			Score: formatSize(ms.FinalScore),
			Tier:  tierOf(i, sel),
		})
	}

	for _, r := range active {
		ov := engine.Overview(r)
		report.Rules = append(report.Rules, entity.ReportRule{
			Order:     r.Order,
			Condition: ov.Condition,
			Delta:     ov.DeltaText,
			Stop:      r.Common().StopOnMatch,
		})
	}
	sort.SliceStable(report.Rules, func(i, j int) bool {
		return report.Rules[i].Order < report.Rules[j].Order
	})

	return report
}

func (p *pickService) load(ctx context.Context) ([]*entity.Candidate, []*entity.Rule, error) {
	candidates, err := p.repo.Candidates(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrNoCandidatesFoundError) {
			p.log.Error("Cannot get candidates", slog.Any("error", err))
		}

		return nil, nil, fmt.Errorf("cannot get candidates: %w", err)
	}

	rules, err := p.repo.ListRules(ctx)
	if err != nil {
		p.log.Error("Cannot list rules", slog.Any("error", err))

		return nil, nil, fmt.Errorf("cannot list rules: %w", err)
	}

	active := engine.ActiveRules(rules)
	if skipped := len(rules) - len(active); skipped > 0 {
		p.log.Debug("Rules not applied", slog.Int("count", skipped))
	}

	return candidates, active, nil
}

func tierOf(i int, sel *entity.Selection) string {
	switch {
	case i < sel.Required:
		return TierRequired
	case i < sel.Required+sel.Preferred:
		return TierPreferred
	}

	return TierFallback
}

func formatSize(v float64) string {
	if v < 0 {
		return fmt.Sprintf("%.0f B", v)
	}

	return humanize.IBytes(uint64(v))
}
