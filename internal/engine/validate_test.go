package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

func TestValidateStructure(t *testing.T) {
	testCases := []struct {
		name    string
		rule    *entity.Rule
		isValid bool
	}{
		{
			name:    "size with positive threshold",
			rule:    rule("a", 0, &entity.SizeConfig{Common: common(1, false), Condition: entity.SizeGreater, Threshold: GB}),
			isValid: true,
		},
		{
			name: "size with zero threshold",
			rule: rule("a", 0, &entity.SizeConfig{Common: common(1, false), Condition: entity.SizeLess}),
		},
		{
			name: "size with unknown condition",
			rule: rule("a", 0, &entity.SizeConfig{Common: common(1, false), Condition: "equal", Threshold: GB}),
		},
		{
			name: "empty keywords",
			rule: rule("a", 0, &entity.NameContainsConfig{Common: common(1, false)}),
		},
		{
			name: "blank keyword",
			rule: rule("a", 0, &entity.NameContainsConfig{Common: common(1, false), Keywords: []string{"HD", " "}}),
		},
		{
			name:    "suffixes",
			rule:    rule("a", 0, &entity.NameSuffixConfig{Common: common(1, false), Suffixes: []string{"-C"}}),
			isValid: true,
		},
		{
			name: "empty extensions",
			rule: rule("a", 0, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{}}),
		},
		{
			name: "empty pattern",
			rule: rule("a", 0, &entity.NameRegexConfig{Common: common(1, false)}),
		},
		{
			name: "pattern does not compile",
			rule: rule("a", 0, &entity.NameRegexConfig{Common: common(1, false), Pattern: "([a-z"}),
		},
		{
			name:    "pattern compiles",
			rule:    rule("a", 0, &entity.NameRegexConfig{Common: common(1, false), Pattern: `^[A-Z]{3,5}-\d+`}),
			isValid: true,
		},
		{
			name: "empty date",
			rule: rule("a", 0, &entity.ShareDateConfig{Common: common(1, false), Condition: entity.DateAfter}),
		},
		{
			name: "bad date",
			rule: rule("a", 0, &entity.ShareDateConfig{Common: common(1, false), Condition: entity.DateAfter, Date: "yesterday"}),
		},
		{
			name:    "date",
			rule:    rule("a", 0, &entity.ShareDateConfig{Common: common(1, false), Condition: entity.DateBefore, Date: "2024-03-01"}),
			isValid: true,
		},
		{
			name: "type and config disagree",
			rule: &entity.Rule{ID: "a", Type: entity.RuleTypeSize, Config: &entity.NameRegexConfig{Pattern: "x"}},
		},
		{
			name: "no config",
			rule: &entity.Rule{ID: "a", Type: entity.RuleTypeSize},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.rule, []*entity.Rule{tc.rule})
			require.Equal(t, tc.isValid, res.IsValid, res.Message)
			if !tc.isValid {
				require.NotEmpty(t, res.Message)
			}
		})
	}
}

func TestValidateDuplicates(t *testing.T) {
	kwA := rule("a", 0, &entity.NameContainsConfig{Common: common(1.2, false), Keywords: []string{"HD", "1080p"}})
	kwB := rule("b", 1, &entity.NameContainsConfig{Common: common(0.5, true), Keywords: []string{"1080p", "HD"}})
	kwC := rule("c", 2, &entity.NameContainsConfig{Common: common(1, false), Keywords: []string{"HD", "720p"}})
	sfx := rule("d", 3, &entity.NameSuffixConfig{Common: common(1, false), Suffixes: []string{"HD", "1080p"}})
	sizeA := rule("e", 4, &entity.SizeConfig{Common: common(1, false), Condition: entity.SizeGreater, Threshold: GB})
	sizeB := rule("f", 5, &entity.SizeConfig{Common: common(2, false), Condition: entity.SizeLess, Threshold: GB})

	all := []*entity.Rule{kwA, kwB, kwC, sfx, sizeA, sizeB}

	res := Validate(kwA, all)
	require.False(t, res.IsValid)
	assert.Contains(t, res.Message, "b")

	res = Validate(kwB, all)
	require.False(t, res.IsValid)
	assert.Contains(t, res.Message, "a")

	assert.True(t, Validate(kwC, all).IsValid)
	assert.True(t, Validate(sfx, all).IsValid, "same payload with another type is not a duplicate")
	assert.True(t, Validate(sizeA, all).IsValid)
	assert.True(t, Validate(sizeB, all).IsValid)

	// The rule itself is skipped by id.
	assert.True(t, Validate(kwA, []*entity.Rule{kwA}).IsValid)
}

func TestIsDuplicateSymmetric(t *testing.T) {
	pairs := [][2]*entity.Rule{
		{
			rule("a", 0, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{"mkv", "mkv"}}),
			rule("b", 0, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{"mkv", "mp4"}}),
		},
		{
			rule("a", 0, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{"mkv", "mp4"}}),
			rule("b", 0, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{"mp4", "mkv"}}),
		},
		{
			rule("a", 0, &entity.NameRegexConfig{Common: common(1, false), Pattern: "x"}),
			rule("b", 0, &entity.NameRegexConfig{Common: common(3, true), Pattern: "x"}),
		},
		{
			rule("a", 0, &entity.ShareDateConfig{Common: common(1, false), Condition: entity.DateAfter, Date: "2024-01-01"}),
			rule("b", 0, &entity.ShareDateConfig{Common: common(1, false), Condition: entity.DateBefore, Date: "2024-01-01"}),
		},
		{
			rule("a", 0, &entity.ShareDateConfig{Common: common(1, false), Condition: entity.DateAfter, Date: "2024-01-01"}),
			rule("b", 0, &entity.ShareDateConfig{Common: common(1, false), Condition: entity.DateAfter, Date: "2024/01/01"}),
		},
	}

	for _, p := range pairs {
		assert.Equal(t, IsDuplicate(p[0], p[1]), IsDuplicate(p[1], p[0]))
	}

	assert.False(t, IsDuplicate(pairs[0][0], pairs[0][1]))
	assert.True(t, IsDuplicate(pairs[1][0], pairs[1][1]))
	assert.True(t, IsDuplicate(pairs[2][0], pairs[2][1]))
	assert.False(t, IsDuplicate(pairs[3][0], pairs[3][1]))
	assert.True(t, IsDuplicate(pairs[4][0], pairs[4][1]), "dates are compared after parsing")
}

func TestActiveRules(t *testing.T) {
	ok := rule("ok", 0, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{"mkv"}})
	disabled := rule("off", 1, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{"mp4"}})
	disabled.Enabled = false
	broken := rule("broken", 2, &entity.NameRegexConfig{Common: common(1, false), Pattern: "("})

	active := ActiveRules([]*entity.Rule{ok, disabled, broken, nil})
	require.Len(t, active, 1)
	require.Equal(t, "ok", active[0].ID)
}

func TestActiveRulesDuplicates(t *testing.T) {
	size, err := entity.NewRule(entity.RuleTypeSize, 0)
	require.NoError(t, err)
	size.Enabled = true
	size.Config.(*entity.SizeConfig).ScoreMultiplier = 2

	draft, err := entity.NewRule(entity.RuleTypeSize, 1)
	require.NoError(t, err)

	t.Run("Scenario 1: disabled draft does not shadow an enabled rule", func(t *testing.T) {
		active := ActiveRules([]*entity.Rule{draft, size})
		require.Len(t, active, 1)
		require.Same(t, size, active[0])

		c := candidate("movie.mkv", 6*GB)
		require.Equal(t, float64(12*GB), Score(c, active).FinalScore)
	})

	t.Run("Scenario 2: first enabled duplicate by order wins", func(t *testing.T) {
		late := rule("late", 5, &entity.ExtensionConfig{Common: common(3, false), Extensions: []string{"mp4", "mkv"}})
		early := rule("early", 1, &entity.ExtensionConfig{Common: common(1.5, false), Extensions: []string{"mkv", "mp4"}})
		other := rule("other", 3, &entity.ExtensionConfig{Common: common(1, false), Extensions: []string{"iso"}})

		active := ActiveRules([]*entity.Rule{late, other, early})
		require.Len(t, active, 2)
		assert.Equal(t, "early", active[0].ID)
		assert.Equal(t, "other", active[1].ID)
	})

	t.Run("Scenario 3: validating against enabled rules ignores drafts", func(t *testing.T) {
		all := []*entity.Rule{size, draft}

		assert.True(t, Validate(size, EnabledRules(all)).IsValid)
		res := Validate(draft, EnabledRules(all))
		require.False(t, res.IsValid)
		assert.Contains(t, res.Message, size.ID)
	})
}

func TestDefaultConfigsAreNeutral(t *testing.T) {
	for _, rt := range entity.RuleTypes {
		r, err := entity.NewRule(rt, 0)
		require.NoError(t, err)
		require.Equal(t, rt, r.Config.RuleType())
		require.False(t, r.Enabled)
		require.Equal(t, 1.0, r.Common().ScoreMultiplier)
		require.False(t, r.Common().StopOnMatch)
	}

	r, err := entity.NewRule(entity.RuleTypeSize, 0)
	require.NoError(t, err)
	require.True(t, Validate(r, nil).IsValid, "size default is usable as is")
}
