package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// RuleType selects which config variant a rule carries.
type RuleType string

const (
	RuleTypeSize         RuleType = "size"
	RuleTypeNameContains RuleType = "name_contains"
	RuleTypeNameSuffix   RuleType = "name_suffix"
	RuleTypeExtension    RuleType = "extension"
	RuleTypeNameRegex    RuleType = "name_regex"
	RuleTypeShareDate    RuleType = "share_date"
)

// RuleTypes lists every known rule type in display order.
var RuleTypes = []RuleType{
	RuleTypeSize,
	RuleTypeNameContains,
	RuleTypeNameSuffix,
	RuleTypeExtension,
	RuleTypeNameRegex,
	RuleTypeShareDate,
}

func (t RuleType) Valid() bool {
	for _, rt := range RuleTypes {
		if rt == t {
			return true
		}
	}

	return false
}

type SizeCondition string

const (
	SizeGreater SizeCondition = "greater"
	SizeLess    SizeCondition = "less"
)

type DateCondition string

const (
	DateBefore DateCondition = "before"
	DateEqual  DateCondition = "equal"
	DateAfter  DateCondition = "after"
)

const (
	GiB = int64(1) << 30

	DefaultSizeThreshold   = 5 * GiB
	DefaultScoreMultiplier = 1.0
)

// Rule is a single user configured predicate with a score multiplier.
type Rule struct {
	ID      string
	Type    RuleType
	Enabled bool
	Order   int
	Config  RuleConfig
}

// NewRule returns a disabled rule of the given type with the default config.
func NewRule(t RuleType, order int) (*Rule, error) {
	cfg, err := DefaultConfig(t)
	if err != nil {
		return nil, err
	}

	return &Rule{
		ID:     uuid.NewString(),
		Type:   t,
		Order:  order,
		Config: cfg,
	}, nil
}

// Common returns the settings shared by every config variant.
func (r *Rule) Common() Common {
	if r == nil || r.Config == nil {
		return Common{ScoreMultiplier: DefaultScoreMultiplier}
	}

	return r.Config.common()
}

// RuleConfig is implemented only by the config variants of this package.
type RuleConfig interface {
	RuleType() RuleType
	common() Common
}

// Common carries the fields every config variant has.
type Common struct {
	ScoreMultiplier float64 `yaml:"score_multiplier" json:"scoreMultiplier"`
	StopOnMatch     bool    `yaml:"stop_on_match" json:"stopOnMatch"`
}

func (c Common) common() Common {
	return c
}

func defaultCommon() Common {
	return Common{ScoreMultiplier: DefaultScoreMultiplier}
}

type SizeConfig struct {
	Common    `yaml:",inline"`
	Condition SizeCondition `yaml:"condition" json:"condition"`
	Threshold int64         `yaml:"threshold" json:"threshold"`
}

func (SizeConfig) RuleType() RuleType { return RuleTypeSize }

type NameContainsConfig struct {
	Common   `yaml:",inline"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

func (NameContainsConfig) RuleType() RuleType { return RuleTypeNameContains }

type NameSuffixConfig struct {
	Common   `yaml:",inline"`
	Suffixes []string `yaml:"suffixes" json:"suffixes"`
}

func (NameSuffixConfig) RuleType() RuleType { return RuleTypeNameSuffix }

type ExtensionConfig struct {
	Common     `yaml:",inline"`
	Extensions []string `yaml:"extensions" json:"extensions"`
}

func (ExtensionConfig) RuleType() RuleType { return RuleTypeExtension }

type NameRegexConfig struct {
	Common  `yaml:",inline"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

func (NameRegexConfig) RuleType() RuleType { return RuleTypeNameRegex }

type ShareDateConfig struct {
	Common    `yaml:",inline"`
	Condition DateCondition `yaml:"condition" json:"condition"`
	Date      string        `yaml:"date" json:"date"`
}

func (ShareDateConfig) RuleType() RuleType { return RuleTypeShareDate }

// DefaultConfig returns the config a freshly added rule of type t starts with.
func DefaultConfig(t RuleType) (RuleConfig, error) {
	switch t {
	case RuleTypeSize:
		return &SizeConfig{Common: defaultCommon(), Condition: SizeGreater, Threshold: DefaultSizeThreshold}, nil
	case RuleTypeNameContains:
		return &NameContainsConfig{Common: defaultCommon(), Keywords: []string{}}, nil
	case RuleTypeNameSuffix:
		return &NameSuffixConfig{Common: defaultCommon(), Suffixes: []string{}}, nil
	case RuleTypeExtension:
		return &ExtensionConfig{Common: defaultCommon(), Extensions: []string{}}, nil
	case RuleTypeNameRegex:
		return &NameRegexConfig{Common: defaultCommon()}, nil
	case RuleTypeShareDate:
		return &ShareDateConfig{Common: defaultCommon(), Condition: DateAfter}, nil
	}

	return nil, fmt.Errorf("unknown rule type %q", t)
}
