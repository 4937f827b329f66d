package rule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/watchzerg/magnet-picker-sub000/internal/common"
	"github.com/watchzerg/magnet-picker-sub000/internal/engine"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const (
	serviceName = "rule"
)

type RuleRepository interface {
	ListRules(ctx context.Context) ([]*entity.Rule, error)
	GetRule(ctx context.Context, id string) (*entity.Rule, error)
	SaveRules(ctx context.Context, rules ...*entity.Rule) error
	DeleteRule(ctx context.Context, id string) error
}

// RuleView is a rule as the editing UI shows it.
type RuleView struct {
	Rule       *entity.Rule            `json:"rule"`
	Overview   engine.RuleOverview     `json:"overview"`
	Validation engine.ValidationResult `json:"validation"`
}

type ruleService struct {
	repo RuleRepository
	log  *slog.Logger
}

func NewRuleService(repo RuleRepository, log *slog.Logger) *ruleService {
	return &ruleService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (s *ruleService) List(ctx context.Context) ([]*RuleView, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		s.log.Error("Cannot list rules", slog.Any("error", err))

		return nil, fmt.Errorf("cannot list rules: %w", err)
	}

	views := make([]*RuleView, len(rules))
	for i, rule := range rules {
		views[i] = view(rule, rules)
	}

	return views, nil
}

// Add appends a disabled rule of type t with the default config.
func (s *ruleService) Add(ctx context.Context, t entity.RuleType) (*RuleView, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%q: %w", t, common.ErrUnknownRuleTypeError)
	}

	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list rules: %w", err)
	}

	order := 0
	for _, r := range rules {
		order = max(order, r.Order+1)
	}

	rule, err := entity.NewRule(t, order)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveRules(ctx, rule); err != nil {
		s.log.Error("Cannot save rule", slog.String("rule_id", rule.ID), slog.Any("error", err))

		return nil, fmt.Errorf("cannot save rule %s: %w", rule.ID, err)
	}

	s.log.Info("Rule added", slog.String("rule_id", rule.ID), slog.String("type", string(t)))

	return view(rule, append(rules, rule)), nil
}

// Update stores the edited rule. A rule that fails validation is stored disabled and the
// returned view carries the reason.
func (s *ruleService) Update(ctx context.Context, rule *entity.Rule) (*RuleView, error) {
	if rule == nil || rule.ID == "" {
		return nil, common.ErrInvalidRuleError
	}

	if _, err := s.repo.GetRule(ctx, rule.ID); err != nil {
		return nil, err
	}

	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list rules: %w", err)
	}

	return s.store(ctx, rule, replace(rules, rule))
}

func (s *ruleService) SetEnabled(ctx context.Context, id string, enabled bool) (*RuleView, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list rules: %w", err)
	}

	for _, rule := range rules {
		if rule.ID == id {
			rule.Enabled = enabled

			return s.store(ctx, rule, rules)
		}
	}

	return nil, common.ErrRuleNotFoundError
}

func (s *ruleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		if !errors.Is(err, common.ErrRuleNotFoundError) {
			s.log.Error("Cannot delete rule", slog.String("rule_id", id), slog.Any("error", err))
		}

		return fmt.Errorf("cannot delete rule %s: %w", id, err)
	}

	s.log.Info("Rule deleted", slog.String("rule_id", id))

	return nil
}

// Reorder rewrites the orders as 0..n-1 following ids, which must name every rule once.
func (s *ruleService) Reorder(ctx context.Context, ids []string) ([]*RuleView, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list rules: %w", err)
	}

	byID := make(map[string]*entity.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	if len(ids) != len(rules) {
		return nil, common.ErrRuleOrderMismatchError
	}

	ordered := make([]*entity.Rule, 0, len(ids))
	for i, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, common.ErrRuleOrderMismatchError
		}
		delete(byID, id)

		r.Order = i
		ordered = append(ordered, r)
	}

	if err := s.repo.SaveRules(ctx, ordered...); err != nil {
		s.log.Error("Cannot save rule order", slog.Any("error", err))

		return nil, fmt.Errorf("cannot save rule order: %w", err)
	}

	views := make([]*RuleView, len(ordered))
	for i, r := range ordered {
		views[i] = view(r, ordered)
	}

	return views, nil
}

// Check validates a draft rule against the stored ones without saving it.
func (s *ruleService) Check(ctx context.Context, rule *entity.Rule) (engine.ValidationResult, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return engine.ValidationResult{}, fmt.Errorf("cannot list rules: %w", err)
	}

	return engine.Validate(rule, engine.EnabledRules(rules)), nil
}

// Import stores rules read from a rules file. Enabled rules that would not be applied are
// stored disabled: invalid ones and duplicates of an earlier enabled rule.
func (s *ruleService) Import(ctx context.Context, rules []*entity.Rule) ([]*RuleView, error) {
	applied := make(map[*entity.Rule]struct{}, len(rules))
	for _, rule := range engine.ActiveRules(rules) {
		applied[rule] = struct{}{}
	}

	for _, rule := range rules {
		if _, ok := applied[rule]; ok || !rule.Enabled {
			continue
		}

		s.log.Warn("Imported rule is invalid and will be disabled", slog.String("rule_id", rule.ID),
			slog.String("reason", engine.Validate(rule, engine.EnabledRules(rules)).Message))
		rule.Enabled = false
	}

	views := make([]*RuleView, len(rules))
	for i, rule := range rules {
		views[i] = view(rule, rules)
	}

	if err := s.repo.SaveRules(ctx, rules...); err != nil {
		s.log.Error("Cannot import rules", slog.Any("error", err))

		return nil, fmt.Errorf("cannot import rules: %w", err)
	}

	return views, nil
}

func (s *ruleService) store(ctx context.Context, rule *entity.Rule, all []*entity.Rule) (*RuleView, error) {
	v := view(rule, all)
	if !v.Validation.IsValid && rule.Enabled {
		s.log.Info("Rule is invalid, disabling", slog.String("rule_id", rule.ID), slog.String("reason", v.Validation.Message))
		rule.Enabled = false
	}

	if err := s.repo.SaveRules(ctx, rule); err != nil {
		s.log.Error("Cannot save rule", slog.String("rule_id", rule.ID), slog.Any("error", err))

		return nil, fmt.Errorf("cannot save rule %s: %w", rule.ID, err)
	}

	return v, nil
}

func view(rule *entity.Rule, all []*entity.Rule) *RuleView {
	return &RuleView{
		Rule:       rule,
		Overview:   engine.Overview(rule),
		Validation: engine.Validate(rule, engine.EnabledRules(all)),
	}
}

func replace(rules []*entity.Rule, rule *entity.Rule) []*entity.Rule {
	out := make([]*entity.Rule, len(rules))
	for i, r := range rules {
		if r.ID == rule.ID {
			out[i] = rule
		} else {
			out[i] = r
		}
	}

	return out
}
