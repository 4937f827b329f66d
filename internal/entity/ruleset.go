package entity

// RuleSet is the on-disk shape of a rules file. Settings is nil when the file has no
// settings block.
type RuleSet struct {
	Settings *SelectionSettings `yaml:"settings,omitempty"`
	Rules    []*Rule            `yaml:"rules"`
}
