package score

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mchmarny/agape/pkg/normalize"
	"github.com/mchmarny/agape/pkg/rule"
)

const (
	// Neutral is the overall score of text without evidence either way.
	Neutral = 50.0

	maxScore       = 100.0
	scorePrecision = 2
	subPrecision   = 4
)

// ErrInvalidOverride is returned when a weight override cannot be applied.
var ErrInvalidOverride = errors.New("invalid weight override")

// Overrides replaces, for a single evaluation, the weight of every rule of
// the given categories.
type Overrides map[rule.Category]float64

// formulaEnv is what a custom scoring formula can reference.
type formulaEnv struct {
	Positive float64 `expr:"positive"`
	Negative float64 `expr:"negative"`
	Net      float64 `expr:"net"`
	Matches  int     `expr:"matches"`
	Words    int     `expr:"words"`
	Prior    float64 `expr:"prior"`
}

type matcher struct {
	rule    int
	keyword string
	tokens  []string
}

// Scorer evaluates text against an immutable rule set. It is safe for
// concurrent use.
type Scorer struct {
	rules      *rule.RuleSet
	mode       rule.MatchMode
	prior      float64
	categories []rule.Category
	matchers   []matcher
	formula    *vm.Program
}

// New compiles the rule set into a Scorer. The rule set is copied; later
// changes to rs do not affect the Scorer.
func New(rs *rule.RuleSet) (*Scorer, error) {
	if rs == nil {
		return nil, &rule.ConfigError{Index: -1, Reason: "rule set is nil"}
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	s := &Scorer{
		rules: rs.Clone(),
		mode:  rs.MatchMode(),
		prior: rs.Prior(),
	}
	s.categories = s.rules.Categories()

	for i, r := range s.rules.Rules {
		seen := make(map[string]bool, len(r.Keywords))
		for _, k := range r.Keywords {
			n := normalize.Text(k)
			if seen[n] {
				continue
			}
			seen[n] = true
			s.matchers = append(s.matchers, matcher{
				rule:    i,
				keyword: n,
				tokens:  normalize.Words(n),
			})
		}
	}

	if src := strings.TrimSpace(rs.Scoring.Formula); src != "" {
		program, err := expr.Compile(src, expr.Env(formulaEnv{}), expr.AsFloat64())
		if err != nil {
			return nil, &rule.ConfigError{
				Index:  -1,
				Field:  "scoring.formula",
				Reason: fmt.Sprintf("invalid formula: %v", err),
			}
		}
		s.formula = program
	}

	slog.Debug("scorer ready",
		"rules", len(s.rules.Rules),
		"keywords", len(s.matchers),
		"categories", len(s.categories),
		"mode", s.mode,
		"custom_formula", s.formula != nil,
	)

	return s, nil
}

// Rules returns a copy of the rule set the scorer was built from.
func (s *Scorer) Rules() *rule.RuleSet {
	return s.rules.Clone()
}

// Evaluate scores text with the configured weights. It never fails.
func (s *Scorer) Evaluate(text string) *Result {
	return s.evaluate(text, nil)
}

// EvaluateWith scores text after replacing the weights of the categories in o.
func (s *Scorer) EvaluateWith(text string, o Overrides) (*Result, error) {
	if err := s.checkOverrides(o); err != nil {
		return nil, err
	}
	return s.evaluate(text, o), nil
}

func (s *Scorer) checkOverrides(o Overrides) error {
	for c, w := range o {
		if !s.rules.Has(c) {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidOverride, c)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > rule.MaxWeight {
			return fmt.Errorf("%w: weight for %q must be between 0 and %v (got %v)", ErrInvalidOverride, c, rule.MaxWeight, w)
		}
	}
	return nil
}

func (s *Scorer) evaluate(text string, o Overrides) *Result {
	normalized := normalize.Text(text)
	tokens := normalize.Tokens(normalized)

	res := &Result{
		Breakdown: make(map[rule.Category]float64, len(s.categories)),
		Matches:   make([]Match, 0),
		Words:     len(tokens),
	}
	for _, c := range s.categories {
		res.Breakdown[c] = 0
	}

	for _, m := range s.matchers {
		r := s.rules.Rules[m.rule]
		weight := r.Weight
		if w, ok := o[r.Category]; ok {
			weight = w
		}

		// a zero override switches the category off
		if weight == 0 {
			continue
		}

		for _, off := range s.find(m, normalized, tokens) {
			c := weight * r.Polarity.Sign()
			res.Breakdown[r.Category] += c
			if c > 0 {
				res.Positive += c
			} else {
				res.Negative -= c
			}
			res.Matches = append(res.Matches, Match{
				Keyword:      m.keyword,
				Category:     r.Category,
				Polarity:     r.Polarity,
				Weight:       weight,
				Contribution: c,
				Offset:       off,
			})
		}
	}

	slices.SortStableFunc(res.Matches, func(a, b Match) int {
		if a.Offset != b.Offset {
			return a.Offset - b.Offset
		}
		if d := strings.Compare(a.Keyword, b.Keyword); d != 0 {
			return d
		}
		return strings.Compare(string(a.Category), string(b.Category))
	})

	for c, v := range res.Breakdown {
		res.Breakdown[c] = toFixed(v, subPrecision)
	}
	res.Positive = toFixed(res.Positive, subPrecision)
	res.Negative = toFixed(res.Negative, subPrecision)

	res.Score = toFixed(s.overall(res), scorePrecision)
	res.Level = LevelFor(res.Score, res.Matched())
	res.Recommendation = res.Level.Recommendation()
	res.Dominant = s.dominant(res)

	slog.Debug("evaluated",
		"words", res.Words,
		"matches", len(res.Matches),
		"score", res.Score,
		"level", res.Level,
	)

	return res
}

// find returns the byte offsets of every occurrence of the matcher keyword.
func (s *Scorer) find(m matcher, normalized string, tokens []normalize.Token) []int {
	var offsets []int

	if s.mode == rule.MatchSubstring {
		for start := 0; start <= len(normalized); {
			i := strings.Index(normalized[start:], m.keyword)
			if i < 0 {
				break
			}
			offsets = append(offsets, start+i)
			start += i + len(m.keyword)
		}
		return offsets
	}

	k := len(m.tokens)
	for i := 0; i+k <= len(tokens); i++ {
		if phraseAt(tokens, i, m.tokens) {
			offsets = append(offsets, tokens[i].Offset)
		}
	}
	return offsets
}

func phraseAt(tokens []normalize.Token, i int, phrase []string) bool {
	for j, p := range phrase {
		if tokens[i+j].Value != p {
			return false
		}
	}
	return true
}

// overall combines the totals into a score in [0, 100].
//
//	score = 100 * (positive + prior) / (positive + negative + 2*prior)
//
// With no evidence the prior pulls the score to Neutral.
func (s *Scorer) overall(res *Result) float64 {
	if s.formula == nil {
		v := maxScore * (res.Positive + s.prior) / (res.Positive + res.Negative + 2*s.prior)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			slog.Debug("score not finite, using neutral score", "positive", res.Positive, "negative", res.Negative)
			return Neutral
		}
		return math.Max(0, math.Min(maxScore, v))
	}

	env := formulaEnv{
		Positive: res.Positive,
		Negative: res.Negative,
		Net:      res.Net(),
		Matches:  len(res.Matches),
		Words:    res.Words,
		Prior:    s.prior,
	}
	out, err := expr.Run(s.formula, env)
	if err != nil {
		slog.Debug("formula failed, using neutral score", "error", err)
		return Neutral
	}
	v, ok := out.(float64)
	if !ok || math.IsNaN(v) {
		return Neutral
	}
	return math.Max(0, math.Min(maxScore, v))
}

// dominant picks the matched category with the largest absolute subscore.
// Ties go to the higher tier, then the lower name.
func (s *Scorer) dominant(res *Result) rule.Category {
	if !res.Matched() {
		return rule.CategoryNeutral
	}

	matched := make(map[rule.Category]bool)
	for _, m := range res.Matches {
		matched[m.Category] = true
	}

	best := rule.CategoryNeutral
	bestAbs := -1.0
	// categories are already ordered by tier rank and name
	for _, c := range s.categories {
		if !matched[c] {
			continue
		}
		if v := math.Abs(res.Breakdown[c]); v > bestAbs {
			best, bestAbs = c, v
		}
	}
	return best
}

// toFixed rounds num to the given precision. Values too large to scale are
// returned as is.
func toFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	scaled := num * output
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
		return num
	}
	return math.Round(scaled) / output
}
