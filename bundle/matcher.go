package bundle

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// MATCHER - Three-tier template lookup and candidate scoring
// =============================================================================

// Score components. An exact RUG group match is reported as MaxScore.
const (
	ScoreExactGroup = 50
	ScoreCategory   = 25
	ScoreADLRange   = 15
	ScoreIADLRange  = 10
	ScoreFlags      = 10
	MaxScore        = 100
)

// MatchKind tells where a candidate sits in the ranked result.
type MatchKind string

const (
	MatchExact         MatchKind = "exact"
	MatchSameCategory  MatchKind = "same_category"
	MatchCrossCategory MatchKind = "cross_category"
)

// Match is one scored template candidate.
type Match struct {
	Template      Template  `json:"template"`
	Score         int       `json:"score"`
	Kind          MatchKind `json:"kind"`
	IsRecommended bool      `json:"is_recommended"`
	Reasons       []string  `json:"reasons"`
}

type MatcherOptions struct {
	// CrossCategoryMinScore excludes weaker cross-category alternatives.
	CrossCategoryMinScore int
	// MaxCrossCategory bounds the number of cross-category alternatives.
	MaxCrossCategory int
}

func DefaultMatcherOptions() MatcherOptions {
	return MatcherOptions{CrossCategoryMinScore: 50, MaxCrossCategory: 3}
}

type Matcher struct {
	templates TemplateStore
	Options   MatcherOptions
}

func NewMatcher(templates TemplateStore) *Matcher {
	return &Matcher{templates: templates, Options: DefaultMatcherOptions()}
}

// byPriority orders templates by priority weight descending, then code.
func byPriority(ts []Template) []Template {
	out := append([]Template(nil), ts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityWeight != out[j].PriorityWeight {
			return out[i].PriorityWeight > out[j].PriorityWeight
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// pickCompatible returns the first candidate whose flags are compatible,
// or the top-ranked candidate when none is. Candidates are priority-ordered.
func pickCompatible(candidates []Template, c *rug.Classification) *Template {
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		if candidates[i].FlagsCompatible(c) {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

// FindForClassification returns the best-fit template, or nil when no
// tier matches.
func (m *Matcher) FindForClassification(ctx context.Context, c *rug.Classification) (*Template, error) {
	all, err := m.templates.Templates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	ranked := byPriority(all)

	// Tier 1: exact group
	for i := range ranked {
		if ranked[i].RUGGroup == c.RUGGroup && ranked[i].AcceptsRanges(c) {
			return &ranked[i], nil
		}
	}

	// Tier 2: category and ranges
	var sameCategory []Template
	for _, t := range ranked {
		if t.RUGCategory == c.RUGCategory && t.AcceptsRanges(c) {
			sameCategory = append(sameCategory, t)
		}
	}
	if t := pickCompatible(sameCategory, c); t != nil {
		return t, nil
	}

	// Tier 3: ranges only
	var inRange []Template
	for _, t := range ranked {
		if t.AcceptsRanges(c) {
			inRange = append(inRange, t)
		}
	}
	return pickCompatible(inRange, c), nil
}

// Score computes a template's match score for c with the reasons behind
// each component.
func Score(t Template, c *rug.Classification) (int, []string) {
	score := 0
	var reasons []string

	exact := t.RUGGroup == c.RUGGroup
	if exact {
		score += ScoreExactGroup
		reasons = append(reasons, fmt.Sprintf("exact RUG group %s", c.RUGGroup))
	}
	if t.RUGCategory == c.RUGCategory {
		score += ScoreCategory
		reasons = append(reasons, fmt.Sprintf("category %s", c.RUGCategory))
	}
	if t.ADLRange.Contains(c.ADLSum) {
		score += ScoreADLRange
		reasons = append(reasons, fmt.Sprintf("ADL sum %d within %s", c.ADLSum, t.ADLRange))
	}
	if t.IADLRange.Contains(c.IADLSum) {
		score += ScoreIADLRange
		reasons = append(reasons, fmt.Sprintf("IADL sum %d within %s", c.IADLSum, t.IADLRange))
	}
	if t.FlagsCompatible(c) {
		score += ScoreFlags
		reasons = append(reasons, "flags compatible")
	}

	if exact {
		score = MaxScore
	}
	return min(score, MaxScore), reasons
}

// FindAllMatchingTemplates scores every template and returns, in order:
// exact matches (the first one recommended), same-category alternatives
// by score, then the strongest cross-category alternatives.
func (m *Matcher) FindAllMatchingTemplates(ctx context.Context, c *rug.Classification) ([]Match, error) {
	all, err := m.templates.Templates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	var exact, same, cross []Match
	for _, t := range byPriority(all) {
		score, reasons := Score(t, c)
		match := Match{Template: t, Score: score, Reasons: reasons}
		switch {
		case t.RUGGroup == c.RUGGroup:
			match.Kind = MatchExact
			exact = append(exact, match)
		case t.RUGCategory == c.RUGCategory:
			match.Kind = MatchSameCategory
			same = append(same, match)
		case score >= m.Options.CrossCategoryMinScore:
			match.Kind = MatchCrossCategory
			cross = append(cross, match)
		}
	}

	byScore := func(ms []Match) {
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].Score > ms[j].Score })
	}
	byScore(same)
	byScore(cross)
	if len(cross) > m.Options.MaxCrossCategory {
		cross = cross[:max(m.Options.MaxCrossCategory, 0)]
	}

	if len(exact) > 0 {
		exact[0].IsRecommended = true
	}

	result := make([]Match, 0, len(exact)+len(same)+len(cross))
	result = append(result, exact...)
	result = append(result, same...)
	result = append(result, cross...)
	return result, nil
}
