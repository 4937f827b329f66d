package pick

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/watchzerg/magnet-picker-sub000/internal/common"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const (
	KeyVersion1      = "v1"
	KeyVersion2      = "v2"
	KeyActiveVersion = "av"  // STRING. Version of the candidate keys currently served.
	KeyCandidates    = "cm"  // HASH. cm:ver candidate_id: candidate JSON
	KeyCandidateList = "cl"  // LIST. cl:ver candidate ids in scan order
	KeyRules         = "rl"  // HASH. rule_id: rule JSON
	KeySettings      = "st"  // STRING. Selection settings JSON
	KeySelection     = "sel" // STRING. Last selection JSON

	KeyEmpty     = ""
	KeySeparator = ":"

	ScanCount = 1000
)

var (
	ClearableKeys = []string{KeyCandidates, KeyCandidateList}
)

type pickRepository struct {
	ver atomic.Value
	cl  *redis.Client
	log *slog.Logger
}

func NewPickRepository(cl *redis.Client, log *slog.Logger) (*pickRepository, error) {
	repo := &pickRepository{
		cl:  cl,
		log: log.With(slog.String("item", "PickRepository")),
	}

	ver, _, err := repo.getVersions(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cannot get active version: %w", err)
	}

	repo.ver.Store(ver)

	return repo, nil
}

func (r *pickRepository) ListRules(ctx context.Context) ([]*entity.Rule, error) {
	raw, err := r.cl.HGetAll(ctx, KeyRules).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get rules: %w", err)
	}

	rules := make([]*entity.Rule, 0, len(raw))
	for id, data := range raw {
		rule := &entity.Rule{}
		if err := json.Unmarshal([]byte(data), rule); err != nil {
			r.log.Error("Cannot decode rule", slog.String("rule_id", id), slog.Any("error", err))

			continue
		}
		rules = append(rules, rule)
	}

	// Hash order is random, ids break order ties.
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Order != rules[j].Order {
			return rules[i].Order < rules[j].Order
		}

		return rules[i].ID < rules[j].ID
	})

	return rules, nil
}

func (r *pickRepository) GetRule(ctx context.Context, id string) (*entity.Rule, error) {
	data, err := r.cl.HGet(ctx, KeyRules, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrRuleNotFoundError
		}

		return nil, fmt.Errorf("cannot get rule %s: %w", id, err)
	}

	rule := &entity.Rule{}
	if err := json.Unmarshal([]byte(data), rule); err != nil {
		return nil, fmt.Errorf("cannot decode rule %s: %w", id, err)
	}

	return rule, nil
}

func (r *pickRepository) SaveRules(ctx context.Context, rules ...*entity.Rule) error {
	if len(rules) == 0 {
		return nil
	}

	pipe := r.cl.TxPipeline()
	for _, rule := range rules {
		data, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("cannot encode rule %s: %w", rule.ID, err)
		}
		pipe.HSet(ctx, KeyRules, rule.ID, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot save rules: %w", err)
	}

	return nil
}

func (r *pickRepository) DeleteRule(ctx context.Context, id string) error {
	n, err := r.cl.HDel(ctx, KeyRules, id).Result()
	if err != nil {
		return fmt.Errorf("cannot delete rule %s: %w", id, err)
	}

	if n == 0 {
		return common.ErrRuleNotFoundError
	}

	return nil
}

func (r *pickRepository) GetSettings(ctx context.Context) (entity.SelectionSettings, error) {
	var settings entity.SelectionSettings
	if err := r.getJSON(ctx, KeySettings, &settings); err != nil {
		if errors.Is(err, redis.Nil) {
			return settings, common.ErrSettingsNotFoundError
		}

		return settings, fmt.Errorf("cannot get settings: %w", err)
	}

	return settings, nil
}

func (r *pickRepository) SaveSettings(ctx context.Context, settings entity.SelectionSettings) error {
	if err := r.setJSON(ctx, KeySettings, settings); err != nil {
		return fmt.Errorf("cannot save settings: %w", err)
	}

	return nil
}

func (r *pickRepository) GetSelection(ctx context.Context) (*entity.Selection, error) {
	sel := &entity.Selection{}
	if err := r.getJSON(ctx, KeySelection, sel); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrSelectionNotFoundError
		}

		return nil, fmt.Errorf("cannot get selection: %w", err)
	}

	return sel, nil
}

func (r *pickRepository) SaveSelection(ctx context.Context, sel *entity.Selection) error {
	if err := r.setJSON(ctx, KeySelection, sel); err != nil {
		return fmt.Errorf("cannot save selection: %w", err)
	}

	return nil
}

// SaveCandidates writes the candidates to the standby version and then makes it active,
// so readers never see a half written set.
func (r *pickRepository) SaveCandidates(ctx context.Context, candidates []*entity.Candidate) error {
	verActive, verStandby, err := r.getVersions(ctx)
	if err != nil {
		r.log.Error("Cannot get standby data version")

		return fmt.Errorf("cannot get active version: %w", err)
	}
	r.log.Info("Save new candidates", slog.String("active_version", verActive), slog.String("standby_version", verStandby))

	if err := r.clearOldData(ctx, verStandby); err != nil {
		r.log.Error("Cannot clear old data", slog.String("version", verStandby), slog.Any("error", err))

		return fmt.Errorf("cannot clear old data: %w", err)
	}

	if err := r.saveNewData(ctx, verStandby, candidates); err != nil {
		r.log.Error("Cannot save new data", slog.String("version", verStandby), slog.Any("error", err))

		return fmt.Errorf("cannot save new data: %w", err)
	}

	if _, err := r.cl.Set(ctx, KeyActiveVersion, verStandby, 0).Result(); err != nil {
		r.log.Error("Cannot switch to new version", slog.String("version", verStandby), slog.Any("error", err))

		return fmt.Errorf("cannot switch to new version: %w", err)
	}

	r.ver.Store(verStandby)

	return nil
}

func (r *pickRepository) saveNewData(ctx context.Context, ver string, candidates []*entity.Candidate) error {
	log := r.log.With(slog.String("op", "saveNewData"), slog.String("version", ver))
	log.Info("Save new data", slog.Int("count", len(candidates)))

	pipe := r.cl.Pipeline()
	for _, c := range candidates {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("cannot encode candidate %s: %w", c.ID, err)
		}

		pipe.HSet(ctx, getKey(KeyCandidates, ver), c.ID, data)
		pipe.RPush(ctx, getKey(KeyCandidateList, ver), c.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot save new data: %w", err)
	}

	return nil
}

func (r *pickRepository) clearOldData(ctx context.Context, ver string) error {
	keys := make([]string, len(ClearableKeys))
	for i, key := range ClearableKeys {
		keys[i] = getKey(key, ver)
	}

	n, err := r.cl.Del(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("error deleting keys: %w", err)
	}

	r.log.Info("Clear old data", slog.String("version", ver), slog.Int64("key_count", n))

	return nil
}

// Candidates returns the active candidates in scan order.
func (r *pickRepository) Candidates(ctx context.Context) ([]*entity.Candidate, error) {
	it, err := r.CandidateIterator(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []*entity.Candidate
	for c, err := range it {
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return nil, common.ErrNoCandidatesFoundError
	}

	return candidates, nil
}

// CandidateIterator walks the active candidates ScanCount at a time.
func (r *pickRepository) CandidateIterator(ctx context.Context) (iter.Seq2[*entity.Candidate, error], error) {
	ver := r.getActiveVersion()
	total, err := r.cl.LLen(ctx, getKey(KeyCandidateList, ver)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get candidate count: %w", err)
	}

	return func(yield func(*entity.Candidate, error) bool) {
		for start := int64(0); start < total; start += ScanCount {
			ids, err := r.cl.LRange(ctx, getKey(KeyCandidateList, ver), start, start+ScanCount-1).Result()
			if err != nil {
				yield(nil, fmt.Errorf("cannot get candidate ids: %w", err))

				return
			}

			if len(ids) == 0 {
				return
			}

			values, err := r.cl.HMGet(ctx, getKey(KeyCandidates, ver), ids...).Result()
			if err != nil {
				yield(nil, fmt.Errorf("cannot get candidates: %w", err))

				return
			}

			for i, v := range values {
				data, ok := v.(string)
				if !ok {
					r.log.Error("Candidate is missing", slog.String("candidate_id", ids[i]))

					continue
				}

				c := &entity.Candidate{}
				if err := json.Unmarshal([]byte(data), c); err != nil {
					r.log.Error("Cannot decode candidate", slog.String("candidate_id", ids[i]), slog.Any("error", err))

					continue
				}

				if !yield(c, nil) {
					return
				}
			}
		}
	}, nil
}

/*
getVersions return active and standby versions
*/
func (r *pickRepository) getVersions(ctx context.Context) (string, string, error) {
	ver, err := r.cl.Get(ctx, KeyActiveVersion).Result()
	if err != nil && err != redis.Nil {
		return KeyEmpty, KeyEmpty, fmt.Errorf("cannot get active version: %w", err)
	}

	switch ver {
	case KeyVersion1:
		return KeyVersion1, KeyVersion2, nil
	case KeyVersion2:
		return KeyVersion2, KeyVersion1, nil
	}

	r.log.Info("Active version key is not found. Try to set new one", slog.String("version", KeyVersion1))

	if _, err = r.cl.Set(ctx, KeyActiveVersion, KeyVersion1, 0).Result(); err != nil {
		return KeyEmpty, KeyEmpty, fmt.Errorf("cannot set version key: %w", err)
	}

	return KeyVersion1, KeyVersion2, nil
}

func (r *pickRepository) getActiveVersion() string {
	return r.ver.Load().(string)
}

func (r *pickRepository) getJSON(ctx context.Context, key string, v any) error {
	data, err := r.cl.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func (r *pickRepository) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return r.cl.Set(ctx, key, data, 0).Err()
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
