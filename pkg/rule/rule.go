package rule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPrior = 1.0
)

// Category is a named topical bucket grouping keyword rules.
type Category string

const (
	// CategoryNeutral is reported as the dominant category when nothing matched.
	// Rules may not use it.
	CategoryNeutral Category = "neutral"

	CategoryLoveGod      Category = "love_god"
	CategoryLoveNeighbor Category = "love_neighbor"
	CategoryHarm         Category = "harm"
	CategoryTrue         Category = "true"
	CategoryHonest       Category = "honest"
	CategoryJust         Category = "just"
	CategoryPure         Category = "pure"
	CategoryLovely       Category = "lovely"
	CategoryGoodReport   Category = "good_report"
	CategoryVirtuous     Category = "virtuous"
	CategoryPraiseworthy Category = "praiseworthy"
)

var categoryRegEx = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// BuiltinCategories lists the categories used by the default rule set.
func BuiltinCategories() []Category {
	return []Category{
		CategoryLoveGod,
		CategoryLoveNeighbor,
		CategoryHarm,
		CategoryTrue,
		CategoryHonest,
		CategoryJust,
		CategoryPure,
		CategoryLovely,
		CategoryGoodReport,
		CategoryVirtuous,
		CategoryPraiseworthy,
	}
}

// Valid reports whether c can be used by a rule.
func (c Category) Valid() bool {
	return c != CategoryNeutral && categoryRegEx.MatchString(string(c))
}

// Polarity is the direction a matched keyword moves its category score.
type Polarity int

const (
	Negative Polarity = -1
	Positive Polarity = 1
)

// ParsePolarity accepts the numeric and named forms used in rule files.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "+1", "positive", "+":
		return Positive, nil
	case "-1", "negative", "-":
		return Negative, nil
	}
	// numbers outside of +/-1 survive parsing and fail validation with context
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return Polarity(n), nil
	}
	return 0, fmt.Errorf("invalid polarity %q (permitted: 1, -1, positive, negative)", s)
}

// Sign returns the polarity as a multiplier.
func (p Polarity) Sign() float64 {
	return float64(p)
}

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return strconv.Itoa(int(p))
	}
}

func (p Polarity) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(p))
}

func (p *Polarity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = string(b)
	}
	v, err := ParsePolarity(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Polarity) MarshalYAML() (any, error) {
	return int(p), nil
}

func (p *Polarity) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: polarity must be a scalar", n.Line)
	}
	v, err := ParsePolarity(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*p = v
	return nil
}

// Tier is the truth hierarchy. It orders categories; it never scales scores.
type Tier int

const (
	TierUnset Tier = iota
	TierGospel
	TierMoral
	TierNatural
	TierPractical
)

var tierNames = map[Tier]string{
	TierGospel:    "gospel",
	TierMoral:     "moral",
	TierNatural:   "natural",
	TierPractical: "practical",
}

// Tiers returns the hierarchy from highest to lowest priority.
func Tiers() []Tier {
	return []Tier{TierGospel, TierMoral, TierNatural, TierPractical}
}

// ParseTier maps a tier name to its value. Empty string is TierUnset.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TierUnset, nil
	}
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return TierUnset, fmt.Errorf("invalid tier %q (permitted: gospel, moral, natural, practical)", s)
}

// Rank is the priority of the tier, 1 being the highest. Unset tiers rank last.
func (t Tier) Rank() int {
	if t < TierGospel || t > TierPractical {
		return int(TierPractical) + 1
	}
	return int(t)
}

func (t Tier) String() string {
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MatchMode selects how keywords are located in the normalized text.
type MatchMode string

const (
	MatchWord      MatchMode = "word"
	MatchSubstring MatchMode = "substring"
)

// MaxWeight bounds rule weights, weight overrides and the scoring prior.
// It must match the lte bounds in the validate tags below.
const MaxWeight = 1e6

// Rule maps a set of keywords to a category with a weight and polarity.
type Rule struct {
	Category    Category `json:"category" yaml:"category" validate:"required,category"`
	Keywords    []string `json:"keywords" yaml:"keywords" validate:"required,min=1,dive,required"`
	Weight      float64  `json:"weight" yaml:"weight" validate:"required,finite,gt=0,lte=1000000"`
	Polarity    Polarity `json:"polarity" yaml:"polarity" validate:"required,oneof=-1 1"`
	Tier        Tier     `json:"tier,omitempty" yaml:"tier,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Scoring holds the rule set level knobs of the overall formula.
type Scoring struct {
	Prior   float64 `json:"prior,omitempty" yaml:"prior,omitempty" validate:"finite,gte=0,lte=1000000"`
	Formula string  `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// RuleSet is the complete, explicitly passed scoring configuration.
type RuleSet struct {
	Version int       `json:"version" yaml:"version" validate:"gte=0"`
	Match   MatchMode `json:"match,omitempty" yaml:"match,omitempty" validate:"omitempty,oneof=word substring"`
	Scoring Scoring   `json:"scoring" yaml:"scoring"`
	Rules   []Rule    `json:"rules" yaml:"rules"`
}

// Clone returns a deep copy so callers can hold a rule set nobody else mutates.
func (rs *RuleSet) Clone() *RuleSet {
	if rs == nil {
		return nil
	}
	c := *rs
	c.Rules = make([]Rule, len(rs.Rules))
	for i, r := range rs.Rules {
		r.Keywords = slices.Clone(r.Keywords)
		c.Rules[i] = r
	}
	return &c
}

// Categories returns the distinct categories ordered by tier rank, then name.
func (rs *RuleSet) Categories() []Category {
	if rs == nil {
		return nil
	}
	seen := make(map[Category]bool)
	list := make([]Category, 0)
	for _, r := range rs.Rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			list = append(list, r.Category)
		}
	}
	slices.SortFunc(list, func(a, b Category) int {
		if d := rs.TierOf(a).Rank() - rs.TierOf(b).Rank(); d != 0 {
			return d
		}
		return strings.Compare(string(a), string(b))
	})
	return list
}

// TierOf returns the highest tier any rule of category c declares.
func (rs *RuleSet) TierOf(c Category) Tier {
	best := TierUnset
	if rs == nil {
		return best
	}
	for _, r := range rs.Rules {
		if r.Category != c || r.Tier == TierUnset {
			continue
		}
		if best == TierUnset || r.Tier.Rank() < best.Rank() {
			best = r.Tier
		}
	}
	return best
}

// Has reports whether any rule uses category c.
func (rs *RuleSet) Has(c Category) bool {
	if rs == nil {
		return false
	}
	for _, r := range rs.Rules {
		if r.Category == c {
			return true
		}
	}
	return false
}

// Prior returns the smoothing constant, defaulting when unset.
func (rs *RuleSet) Prior() float64 {
	if rs == nil || rs.Scoring.Prior <= 0 {
		return defaultPrior
	}
	return rs.Scoring.Prior
}

// MatchMode returns the configured mode, word by default.
func (rs *RuleSet) MatchMode() MatchMode {
	if rs == nil || rs.Match == "" {
		return MatchWord
	}
	return rs.Match
}
