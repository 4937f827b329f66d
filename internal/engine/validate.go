package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

// ValidationResult is shown to the user next to the rule being edited.
type ValidationResult struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message,omitempty"`
}

func valid() ValidationResult {
	return ValidationResult{IsValid: true}
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Message: fmt.Sprintf(format, args...)}
}

// Validate checks the rule config and that no other rule in allRules is a duplicate of it.
// It never modifies its arguments: disabling an invalid rule is up to the caller.
func Validate(rule *entity.Rule, allRules []*entity.Rule) ValidationResult {
	if res := checkStructure(rule); !res.IsValid {
		return res
	}

	for _, other := range allRules {
		if other == nil || other.ID == rule.ID {
			continue
		}

		if IsDuplicate(rule, other) {
			return invalid("duplicate of rule %s", other.ID)
		}
	}

	return valid()
}

// ActiveRules returns the rules a scoring pass applies, sorted by order: enabled rules that
// are well-formed and do not duplicate an earlier active rule. Disabled rules never shadow
// enabled ones, and of two enabled duplicates only the first one by order is kept.
func ActiveRules(rules []*entity.Rule) []*entity.Rule {
	active := make([]*entity.Rule, 0, len(rules))
	for _, rule := range sortRules(rules) {
		if !rule.Enabled {
			continue
		}

		if Validate(rule, active).IsValid {
			active = append(active, rule)
		}
	}

	return active
}

// EnabledRules returns the enabled rules of the list. Validating a rule against them reports
// only the duplicates that would keep it from being applied.
func EnabledRules(rules []*entity.Rule) []*entity.Rule {
	enabled := make([]*entity.Rule, 0, len(rules))
	for _, rule := range rules {
		if rule != nil && rule.Enabled {
			enabled = append(enabled, rule)
		}
	}

	return enabled
}

func checkStructure(rule *entity.Rule) ValidationResult {
	if rule == nil || rule.Config == nil {
		return invalid("rule has no config")
	}

	if rule.Config.RuleType() != rule.Type {
		return invalid("config of type %s does not match rule type %s", rule.Config.RuleType(), rule.Type)
	}

	switch cfg := rule.Config.(type) {
	case *entity.SizeConfig:
		if cfg.Condition != entity.SizeGreater && cfg.Condition != entity.SizeLess {
			return invalid("unknown size condition %q", cfg.Condition)
		}
		if cfg.Threshold <= 0 {
			return invalid("size threshold must be greater than zero")
		}
	case *entity.NameContainsConfig:
		return checkList("keyword", cfg.Keywords)
	case *entity.NameSuffixConfig:
		return checkList("suffix", cfg.Suffixes)
	case *entity.ExtensionConfig:
		return checkList("extension", cfg.Extensions)
	case *entity.NameRegexConfig:
		if cfg.Pattern == "" {
			return invalid("pattern is empty")
		}
		if _, err := regexp.Compile(cfg.Pattern); err != nil {
			return invalid("invalid pattern: %s", err)
		}
	case *entity.ShareDateConfig:
		if cfg.Condition != entity.DateBefore && cfg.Condition != entity.DateEqual && cfg.Condition != entity.DateAfter {
			return invalid("unknown date condition %q", cfg.Condition)
		}
		if strings.TrimSpace(cfg.Date) == "" {
			return invalid("date is empty")
		}
		if _, err := entity.ParseDate(cfg.Date); err != nil {
			return invalid("invalid date: %s", err)
		}
	default:
		return invalid("unsupported config %T", cfg)
	}

	return valid()
}

func checkList(what string, items []string) ValidationResult {
	if len(items) == 0 {
		return invalid("at least one %s is required", what)
	}

	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return invalid("empty %s is not allowed", what)
		}
	}

	return valid()
}

// IsDuplicate reports whether a and b have the same type and an equivalent payload.
// Id, enabled flag, order, multiplier and stopOnMatch are not compared.
func IsDuplicate(a, b *entity.Rule) bool {
	if a == nil || b == nil || a.Type != b.Type || a.Config == nil || b.Config == nil {
		return false
	}

	switch ca := a.Config.(type) {
	case *entity.SizeConfig:
		cb, ok := b.Config.(*entity.SizeConfig)
		return ok && ca.Condition == cb.Condition && ca.Threshold == cb.Threshold
	case *entity.NameContainsConfig:
		cb, ok := b.Config.(*entity.NameContainsConfig)
		return ok && sameSet(ca.Keywords, cb.Keywords)
	case *entity.NameSuffixConfig:
		cb, ok := b.Config.(*entity.NameSuffixConfig)
		return ok && sameSet(ca.Suffixes, cb.Suffixes)
	case *entity.ExtensionConfig:
		cb, ok := b.Config.(*entity.ExtensionConfig)
		return ok && sameSet(ca.Extensions, cb.Extensions)
	case *entity.NameRegexConfig:
		cb, ok := b.Config.(*entity.NameRegexConfig)
		return ok && ca.Pattern == cb.Pattern
	case *entity.ShareDateConfig:
		cb, ok := b.Config.(*entity.ShareDateConfig)
		return ok && ca.Condition == cb.Condition && sameDate(ca.Date, cb.Date)
	}

	return false
}

// sameDate compares parsed dates so that 2024-01-01 and 2024/01/01 are equal. Dates that do
// not parse are compared as written.
func sameDate(a, b string) bool {
	da, errA := entity.ParseDate(a)
	db, errB := entity.ParseDate(b)
	if errA != nil || errB != nil {
		return a == b
	}

	return da.Equal(db)
}

// sameSet compares membership in both directions so that the relation stays symmetric.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	return containsAll(a, b) && containsAll(b, a)
}

func containsAll(set, items []string) bool {
	m := make(map[string]struct{}, len(set))
	for _, s := range set {
		m[s] = struct{}{}
	}

	for _, item := range items {
		if _, ok := m[item]; !ok {
			return false
		}
	}

	return true
}
