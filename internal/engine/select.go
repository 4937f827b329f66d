package engine

import (
	"sort"

	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

// Result is a selection together with how many candidates each tier contributed.
type Result struct {
	Candidates []*entity.Candidate
	Required   int
	Preferred  int
	Fallback   int
}

// Select scores the candidates and picks at most settings.TargetCount of them.
func Select(candidates []*entity.Candidate, rules []*entity.Rule, settings entity.SelectionSettings) []*entity.Candidate {
	return SelectScored(ScoreCandidates(candidates, rules), settings).Candidates
}

// SelectScored picks from already scored candidates in three tiers:
//  1. score above RequiredThreshold, best score first;
//  2. the rest with score above PreferredThreshold, largest first;
//  3. everything left, largest first.
//
// A tier is consulted only when the previous ones did not reach TargetCount.
func SelectScored(scores []entity.MagnetScore, settings entity.SelectionSettings) Result {
	target := settings.TargetCount
	if target <= 0 || len(scores) == 0 {
		return Result{Candidates: []*entity.Candidate{}}
	}

	seen := make(map[*entity.Candidate]struct{}, len(scores))
	byScore := make([]entity.MagnetScore, 0, len(scores))
	for _, s := range scores {
		if s.Candidate == nil {
			continue
		}
		if _, ok := seen[s.Candidate]; ok {
			continue
		}
		seen[s.Candidate] = struct{}{}
		byScore = append(byScore, s)
	}
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].FinalScore > byScore[j].FinalScore
	})

	required := float64(settings.RequiredThreshold)
	preferred := float64(settings.PreferredThreshold)

	var tier1, rest []entity.MagnetScore
	for _, s := range byScore {
		if s.FinalScore > required {
			tier1 = append(tier1, s)
		} else {
			rest = append(rest, s)
		}
	}

	if len(tier1) >= target {
		return Result{Candidates: candidatesOf(tier1[:target]), Required: target}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Candidate.Size > rest[j].Candidate.Size
	})

	var tier2, tier3 []entity.MagnetScore
	for _, s := range rest {
		if s.FinalScore > preferred {
			tier2 = append(tier2, s)
		} else {
			tier3 = append(tier3, s)
		}
	}

	res := Result{Required: len(tier1)}
	combined := append(tier1, tier2...)
	if len(combined) >= target {
		res.Preferred = target - len(tier1)
		res.Candidates = candidatesOf(combined[:target])

		return res
	}

	res.Preferred = len(tier2)
	all := append(combined, tier3...)
	if len(all) > target {
		all = all[:target]
	}
	res.Fallback = len(all) - len(combined)
	res.Candidates = candidatesOf(all)

	return res
}

func candidatesOf(scores []entity.MagnetScore) []*entity.Candidate {
	out := make([]*entity.Candidate, len(scores))
	for i, s := range scores {
		out[i] = s.Candidate
	}

	return out
}
