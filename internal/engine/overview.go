package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

// RuleOverview is a display summary of a rule. It plays no part in scoring.
type RuleOverview struct {
	Condition string `json:"condition"`
	Delta     int    `json:"delta"`
	DeltaText string `json:"deltaText"`
}

func Overview(rule *entity.Rule) RuleOverview {
	delta := ScoreDelta(rule.Common().ScoreMultiplier)

	return RuleOverview{
		Condition: Condition(rule),
		Delta:     delta,
		DeltaText: formatDelta(delta),
	}
}

// ScoreDelta is the percentage change a multiplier applies, rounded to an integer.
func ScoreDelta(multiplier float64) int {
	return int(math.Round((multiplier - 1) * 100))
}

func formatDelta(delta int) string {
	if delta == 0 {
		return "0%"
	}

	return fmt.Sprintf("%+d%%", delta)
}

// Condition renders the rule predicate, e.g. "size > 5.0 GiB".
func Condition(rule *entity.Rule) string {
	if rule == nil || rule.Config == nil {
		return ""
	}

	switch cfg := rule.Config.(type) {
	case *entity.SizeConfig:
		op := ">"
		if cfg.Condition == entity.SizeLess {
			op = "<"
		}
		if cfg.Threshold < 0 {
			return fmt.Sprintf("size %s %d B", op, cfg.Threshold)
		}
		return fmt.Sprintf("size %s %s", op, humanize.IBytes(uint64(cfg.Threshold)))
	case *entity.NameContainsConfig:
		return "name contains " + quoteList(cfg.Keywords)
	case *entity.NameSuffixConfig:
		return "name ends with " + quoteList(cfg.Suffixes)
	case *entity.ExtensionConfig:
		return "extension is " + strings.Join(cfg.Extensions, ", ")
	case *entity.NameRegexConfig:
		return "name matches /" + cfg.Pattern + "/"
	case *entity.ShareDateConfig:
		op := map[entity.DateCondition]string{
			entity.DateBefore: "<",
			entity.DateEqual:  "=",
			entity.DateAfter:  ">",
		}[cfg.Condition]
		return fmt.Sprintf("date %s %s", op, cfg.Date)
	}

	return ""
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, " or ")
}
