package engine

import (
	"regexp"
	"runtime"
	"sort"
	"sync"

	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const (
	// Batches below this size are scored on the calling goroutine.
	parallelThreshold = 2048
)

// Step describes what a single rule did to a candidate.
type Step struct {
	RuleID     string  `json:"ruleId"`
	Matched    bool    `json:"matched"`
	Literal    string  `json:"literal,omitempty"`
	Multiplier float64 `json:"multiplier"`
	Stopped    bool    `json:"stopped"`
}

// Score folds the rules, in order, over the candidate. The base score is the size in bytes.
// Every matching rule multiplies the running multiplier; a matching rule with StopOnMatch
// ends the fold. Disabled or malformed rules are skipped as non-matching.
func Score(c *entity.Candidate, rules []*entity.Rule) entity.MagnetScore {
	return score(c, prepare(rules), nil)
}

// Explain scores the candidate and returns the steps taken, for display.
func Explain(c *entity.Candidate, rules []*entity.Rule) (entity.MagnetScore, []Step) {
	var steps []Step
	ms := score(c, prepare(rules), &steps)

	return ms, steps
}

// ScoreCandidates scores every candidate; the result has the same order as the input.
func ScoreCandidates(candidates []*entity.Candidate, rules []*entity.Rule) []entity.MagnetScore {
	prepared := prepare(rules)
	scores := make([]entity.MagnetScore, len(candidates))

	if len(candidates) < parallelThreshold {
		for i, c := range candidates {
			scores[i] = score(c, prepared, nil)
		}

		return scores
	}

	workers := runtime.GOMAXPROCS(0)
	in := make(chan int, len(candidates))
	for i := range candidates {
		in <- i
	}
	close(in)

	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go func() {
			defer wg.Done()

			for i := range in {
				scores[i] = score(candidates[i], prepared, nil)
			}
		}()
	}
	wg.Wait()

	return scores
}

func score(c *entity.Candidate, prepared []preparedRule, steps *[]Step) entity.MagnetScore {
	ms := entity.MagnetScore{Candidate: c}
	if c == nil {
		return ms
	}

	ms.DefaultScore = float64(c.Size)
	multiplier := 1.0

	for _, pr := range prepared {
		rule := pr.rule
		literal, ok := matchDetail(rule, pr.re, c)
		common := rule.Common()
		if steps != nil {
			*steps = append(*steps, Step{
				RuleID:     rule.ID,
				Matched:    ok,
				Literal:    literal,
				Multiplier: common.ScoreMultiplier,
				Stopped:    ok && common.StopOnMatch,
			})
		}

		if !ok {
			continue
		}

		multiplier *= common.ScoreMultiplier
		if common.StopOnMatch {
			break
		}
	}

	ms.FinalScore = ms.DefaultScore * multiplier

	return ms
}

// preparedRule is an enabled, well-formed rule with its pattern compiled when it has one.
type preparedRule struct {
	rule *entity.Rule
	re   *regexp.Regexp
}

// prepare sorts the rules and drops disabled or malformed ones. Patterns are compiled once
// per call and shared read-only by the scoring goroutines.
func prepare(rules []*entity.Rule) []preparedRule {
	sorted := sortRules(rules)
	prepared := make([]preparedRule, 0, len(sorted))
	for _, rule := range sorted {
		if !rule.Enabled || !checkStructure(rule).IsValid {
			continue
		}

		pr := preparedRule{rule: rule}
		if cfg, ok := rule.Config.(*entity.NameRegexConfig); ok {
			pr.re = regexp.MustCompile(cfg.Pattern)
		}
		prepared = append(prepared, pr)
	}

	return prepared
}

// sortRules returns a copy of rules ordered by Order, ties kept in input order.
func sortRules(rules []*entity.Rule) []*entity.Rule {
	sorted := make([]*entity.Rule, 0, len(rules))
	for _, r := range rules {
		if r != nil {
			sorted = append(sorted, r)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	return sorted
}
