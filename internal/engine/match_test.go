package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

func TestMatches(t *testing.T) {
	testCases := []struct {
		name      string
		cfg       entity.RuleConfig
		candidate *entity.Candidate
		match     bool
		literal   string
	}{
		{
			name:      "size greater",
			cfg:       &entity.SizeConfig{Condition: entity.SizeGreater, Threshold: 5 * GB},
			candidate: candidate("a.mkv", 6*GB),
			match:     true,
			literal:   "6442450944",
		},
		{
			name:      "size equal never matches greater",
			cfg:       &entity.SizeConfig{Condition: entity.SizeGreater, Threshold: 5 * GB},
			candidate: candidate("a.mkv", 5*GB),
		},
		{
			name:      "size equal never matches less",
			cfg:       &entity.SizeConfig{Condition: entity.SizeLess, Threshold: 5 * GB},
			candidate: candidate("a.mkv", 5*GB),
		},
		{
			name:      "size less",
			cfg:       &entity.SizeConfig{Condition: entity.SizeLess, Threshold: 5 * GB},
			candidate: candidate("a.mkv", GB),
			match:     true,
			literal:   "1073741824",
		},
		{
			name:      "keyword is case insensitive",
			cfg:       &entity.NameContainsConfig{Keywords: []string{"sample", "hd"}},
			candidate: candidate("Movie.HD.mkv", GB),
			match:     true,
			literal:   "hd",
		},
		{
			name:      "keyword matches across the extension",
			cfg:       &entity.NameContainsConfig{Keywords: []string{"e.mk"}},
			candidate: candidate("Movie.mkv", GB),
			match:     true,
			literal:   "e.mk",
		},
		{
			name:      "keyword missing",
			cfg:       &entity.NameContainsConfig{Keywords: []string{"4K"}},
			candidate: candidate("Movie.HD.mkv", GB),
		},
		{
			name:      "suffix ignores the extension",
			cfg:       &entity.NameSuffixConfig{Suffixes: []string{"-c"}},
			candidate: candidate("ABC-123-C.mp4", GB),
			match:     true,
			literal:   "-c",
		},
		{
			name:      "suffix does not see the extension",
			cfg:       &entity.NameSuffixConfig{Suffixes: []string{"mp4"}},
			candidate: candidate("ABC-123-C.mp4", GB),
		},
		{
			name:      "suffix on a name without extension",
			cfg:       &entity.NameSuffixConfig{Suffixes: []string{"-C"}},
			candidate: candidate("ABC-123-C", GB),
			match:     true,
			literal:   "-C",
		},
		{
			name:      "extension",
			cfg:       &entity.ExtensionConfig{Extensions: []string{"ISO", "mkv"}},
			candidate: candidate("disc.iso", GB),
			match:     true,
			literal:   "ISO",
		},
		{
			name:      "only the last extension counts",
			cfg:       &entity.ExtensionConfig{Extensions: []string{"tar"}},
			candidate: candidate("backup.tar.gz", GB),
		},
		{
			name:      "no extension never matches",
			cfg:       &entity.ExtensionConfig{Extensions: []string{"mkv"}},
			candidate: candidate("README", GB),
		},
		{
			name:      "regex is case sensitive",
			cfg:       &entity.NameRegexConfig{Pattern: "hd"},
			candidate: candidate("Movie.HD.mkv", GB),
		},
		{
			name:      "regex is unanchored",
			cfg:       &entity.NameRegexConfig{Pattern: `[A-Z]+-\d+`},
			candidate: candidate("[site] ABC-123.mp4", GB),
			match:     true,
			literal:   "ABC-123",
		},
		{
			name:      "bad regex never matches",
			cfg:       &entity.NameRegexConfig{Pattern: "(("},
			candidate: candidate("((", GB),
		},
		{
			name:      "date after",
			cfg:       &entity.ShareDateConfig{Condition: entity.DateAfter, Date: "2024-01-01"},
			candidate: &entity.Candidate{Name: "x", Date: "2024-01-02"},
			match:     true,
			literal:   "2024-01-02",
		},
		{
			name:      "date equal ignores time of day",
			cfg:       &entity.ShareDateConfig{Condition: entity.DateEqual, Date: "2024-01-02"},
			candidate: &entity.Candidate{Name: "x", Date: "2024-01-02 23:10:00"},
			match:     true,
			literal:   "2024-01-02",
		},
		{
			name:      "date before",
			cfg:       &entity.ShareDateConfig{Condition: entity.DateBefore, Date: "2024-01-01"},
			candidate: &entity.Candidate{Name: "x", Date: "2024/01/01"},
		},
		{
			name:      "unparseable candidate date",
			cfg:       &entity.ShareDateConfig{Condition: entity.DateBefore, Date: "2024-01-01"},
			candidate: &entity.Candidate{Name: "x", Date: "last week"},
		},
		{
			name:      "missing candidate date",
			cfg:       &entity.ShareDateConfig{Condition: entity.DateAfter, Date: "2024-01-01"},
			candidate: &entity.Candidate{Name: "x"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := rule("r", 0, tc.cfg)
			require.Equal(t, tc.match, Matches(r, tc.candidate))

			literal, ok := MatchDetail(r, tc.candidate)
			require.Equal(t, tc.match, ok)
			require.Equal(t, tc.literal, literal)
		})
	}
}

func TestMatchesNil(t *testing.T) {
	require.False(t, Matches(nil, candidate("a", 1)))
	require.False(t, Matches(&entity.Rule{Type: entity.RuleTypeSize}, candidate("a", 1)))
	require.False(t, Matches(rule("r", 0, &entity.SizeConfig{Condition: entity.SizeGreater, Threshold: 1}), nil))
}
