package rug

import "time"

// =============================================================================
// CLASSIFIER - Pure hierarchy evaluation
// =============================================================================

// Classifier evaluates a rule table. The zero value uses Rules.
type Classifier struct {
	Rules []Rule
	Now   func() time.Time
}

// NewClassifier returns a classifier over the standard hierarchy.
func NewClassifier() *Classifier {
	return &Classifier{Rules: Rules, Now: time.Now}
}

// Evaluate runs the rules against a profile and returns the first match.
func (c *Classifier) Evaluate(p Profile) (Rule, Group) {
	rules := c.Rules
	if len(rules) == 0 {
		rules = Rules
	}
	for _, r := range rules {
		if g, ok := r.Match(p); ok {
			return r, g
		}
	}
	// Unreachable with the standard table; the catch-all always matches.
	last := rules[len(rules)-1]
	return last, "PA1"
}

// Classify computes a classification without persisting it. The result is
// marked current; supersession is the store's concern.
func (c *Classifier) Classify(a Assessment) Classification {
	p := NewProfile(a)
	rule, group := c.Evaluate(p)

	category, ok := CategoryOf(group)
	if !ok {
		category = rule.Category
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	return Classification{
		PatientID:      a.PatientID,
		AssessmentID:   a.ID,
		RUGGroup:       group,
		RUGCategory:    category,
		ADLSum:         p.ADLSum,
		IADLSum:        p.IADLSum,
		CPSScore:       p.CPS,
		Flags:          p.Flags.Clone(),
		NumericRank:    NumericRank(group),
		TherapyMinutes: p.TherapyMinutes,
		ExtensiveCount: p.ExtensiveCount,
		MatchedRule:    rule.Name,
		IsCurrent:      true,
		ClassifiedAt:   now().UTC(),
	}
}
