package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

// Matches reports whether the rule predicate holds for the candidate.
func Matches(rule *entity.Rule, c *entity.Candidate) bool {
	_, ok := MatchDetail(rule, c)

	return ok
}

// MatchDetail returns the literal that made the rule match: the keyword, suffix, extension or
// regex match for name rules, the candidate size or date for the others.
func MatchDetail(rule *entity.Rule, c *entity.Candidate) (string, bool) {
	return matchDetail(rule, nil, c)
}

// matchDetail uses re for NAME_REGEX rules when it is set and compiles the pattern otherwise.
func matchDetail(rule *entity.Rule, re *regexp.Regexp, c *entity.Candidate) (string, bool) {
	if rule == nil || rule.Config == nil || c == nil {
		return "", false
	}

	switch cfg := rule.Config.(type) {
	case *entity.SizeConfig:
		return matchSize(cfg, c)
	case *entity.NameContainsConfig:
		name := strings.ToLower(c.Name)
		for _, kw := range cfg.Keywords {
			if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
				return kw, true
			}
		}
	case *entity.NameSuffixConfig:
		base := strings.ToLower(stripExtension(c.Name))
		for _, suffix := range cfg.Suffixes {
			if suffix != "" && strings.HasSuffix(base, strings.ToLower(suffix)) {
				return suffix, true
			}
		}
	case *entity.ExtensionConfig:
		ext := extension(c.Name)
		if ext == "" {
			return "", false
		}
		for _, e := range cfg.Extensions {
			if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
				return e, true
			}
		}
	case *entity.NameRegexConfig:
		if cfg.Pattern == "" {
			return "", false
		}
		if re == nil {
			var err error
			if re, err = regexp.Compile(cfg.Pattern); err != nil {
				return "", false
			}
		}
		if loc := re.FindStringIndex(c.Name); loc != nil {
			return c.Name[loc[0]:loc[1]], true
		}
	case *entity.ShareDateConfig:
		return matchDate(cfg, c)
	}

	return "", false
}

func matchSize(cfg *entity.SizeConfig, c *entity.Candidate) (string, bool) {
	var ok bool
	switch cfg.Condition {
	case entity.SizeGreater:
		ok = c.Size > cfg.Threshold
	case entity.SizeLess:
		ok = c.Size < cfg.Threshold
	}

	if !ok {
		return "", false
	}

	return strconv.FormatInt(c.Size, 10), true
}

func matchDate(cfg *entity.ShareDateConfig, c *entity.Candidate) (string, bool) {
	ruleDate, err := entity.ParseDate(cfg.Date)
	if err != nil {
		return "", false
	}

	date, err := entity.ParseDate(c.Date)
	if err != nil {
		return "", false
	}

	var ok bool
	switch cfg.Condition {
	case entity.DateAfter:
		ok = date.After(ruleDate)
	case entity.DateBefore:
		ok = date.Before(ruleDate)
	case entity.DateEqual:
		ok = date.Equal(ruleDate)
	}

	if !ok {
		return "", false
	}

	return date.Format("2006-01-02"), true
}

// extension returns the lower-cased text after the last dot, or "" when there is none.
func extension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return ""
	}

	return strings.ToLower(name[idx+1:])
}

func stripExtension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return name
	}

	return name[:idx]
}
