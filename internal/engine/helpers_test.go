package engine

import (
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const GB = entity.GiB

func rule(id string, order int, cfg entity.RuleConfig) *entity.Rule {
	return &entity.Rule{
		ID:      id,
		Type:    cfg.RuleType(),
		Enabled: true,
		Order:   order,
		Config:  cfg,
	}
}

func common(m float64, stop bool) entity.Common {
	return entity.Common{ScoreMultiplier: m, StopOnMatch: stop}
}

func candidate(name string, size int64) *entity.Candidate {
	return &entity.Candidate{ID: name, Name: name, Size: size}
}
