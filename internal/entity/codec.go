package entity

import (
	"encoding/json"
	"fmt"
)

type ruleHeader struct {
	ID      string   `yaml:"id" json:"id"`
	Type    RuleType `yaml:"type" json:"type"`
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Order   int      `yaml:"order" json:"order"`
}

type ruleJSON struct {
	ruleHeader
	Config json.RawMessage `json:"config"`
}

type ruleYAML struct {
	ID      string     `yaml:"id"`
	Type    RuleType   `yaml:"type"`
	Enabled bool       `yaml:"enabled"`
	Order   int        `yaml:"order"`
	Config  RuleConfig `yaml:"config"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal rule %s config: %w", r.ID, err)
	}

	return json.Marshal(ruleJSON{
		ruleHeader: ruleHeader{ID: r.ID, Type: r.Type, Enabled: r.Enabled, Order: r.Order},
		Config:     cfg,
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cfg, err := DefaultConfig(raw.Type)
	if err != nil {
		return err
	}

	if len(raw.Config) > 0 && string(raw.Config) != "null" {
		if err := json.Unmarshal(raw.Config, cfg); err != nil {
			return fmt.Errorf("cannot unmarshal rule %s config: %w", raw.ID, err)
		}
	}

	r.setHeader(raw.ruleHeader, cfg)

	return nil
}

func (r Rule) MarshalYAML() (interface{}, error) {
	return ruleYAML{
		ID:      r.ID,
		Type:    r.Type,
		Enabled: r.Enabled,
		Order:   r.Order,
		Config:  r.Config,
	}, nil
}

// UnmarshalYAML decodes the header first so the type tag can pick the config variant.
func (r *Rule) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var h ruleHeader
	if err := unmarshal(&h); err != nil {
		return err
	}

	cfg, err := DefaultConfig(h.Type)
	if err != nil {
		return err
	}

	switch c := cfg.(type) {
	case *SizeConfig:
		err = unmarshalConfig(unmarshal, c)
	case *NameContainsConfig:
		err = unmarshalConfig(unmarshal, c)
	case *NameSuffixConfig:
		err = unmarshalConfig(unmarshal, c)
	case *ExtensionConfig:
		err = unmarshalConfig(unmarshal, c)
	case *NameRegexConfig:
		err = unmarshalConfig(unmarshal, c)
	case *ShareDateConfig:
		err = unmarshalConfig(unmarshal, c)
	}
	if err != nil {
		return fmt.Errorf("cannot unmarshal rule %s config: %w", h.ID, err)
	}

	r.setHeader(h, cfg)

	return nil
}

func (r *Rule) setHeader(h ruleHeader, cfg RuleConfig) {
	r.ID = h.ID
	r.Type = h.Type
	r.Enabled = h.Enabled
	r.Order = h.Order
	r.Config = cfg
}

func unmarshalConfig[T any](unmarshal func(interface{}) error, cfg *T) error {
	holder := struct {
		Config *T `yaml:"config"`
	}{Config: cfg}

	return unmarshal(&holder)
}
