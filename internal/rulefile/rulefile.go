package rulefile

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
	"gopkg.in/yaml.v2"
)

// Load reads a rules file. Rules without an id get one derived from their position.
func Load(fs afero.Fs, path string) (*entity.RuleSet, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read rules file %s: %w", path, err)
	}

	set := &entity.RuleSet{}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("cannot parse rules file %s: %w", path, err)
	}

	for i, rule := range set.Rules {
		if rule == nil {
			return nil, fmt.Errorf("rules file %s: rule %d is empty", path, i)
		}

		if rule.ID == "" {
			rule.ID = fmt.Sprintf("%s-%d", rule.Type, i)
		}
	}

	return set, nil
}

func Save(fs afero.Fs, path string, set *entity.RuleSet) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("cannot encode rules: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create dir for %s: %w", path, err)
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("cannot write rules file %s: %w", path, err)
	}

	return nil
}
