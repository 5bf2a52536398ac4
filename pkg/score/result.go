package score

import (
	"github.com/mchmarny/agape/pkg/rule"
)

// Level buckets the overall score into a recommendation.
type Level string

const (
	LevelUnrated      Level = "unrated"
	LevelExcellent    Level = "excellent"
	LevelGood         Level = "good"
	LevelMixed        Level = "mixed"
	LevelQuestionable Level = "questionable"
	LevelAvoid        Level = "avoid"

	excellentThreshold    = 80.0
	goodThreshold         = 64.0
	mixedThreshold        = 48.0
	questionableThreshold = 32.0
)

var recommendations = map[Level]string{
	LevelUnrated:      "No rule matched; nothing to recommend either way.",
	LevelExcellent:    "Highly recommended: strongly aligned with the rule set.",
	LevelGood:         "Recommended: aligns well with the rule set.",
	LevelMixed:        "Use discernment: contains both aligned and concerning elements.",
	LevelQuestionable: "Caution advised: more concerning than aligned elements.",
	LevelAvoid:        "Not recommended: contrary to the rule set.",
}

// Levels returns every level from best to worst, unrated last.
func Levels() []Level {
	return []Level{LevelExcellent, LevelGood, LevelMixed, LevelQuestionable, LevelAvoid, LevelUnrated}
}

// LevelFor maps an overall score to its level. Without any match the score
// carries no evidence and the level is unrated.
func LevelFor(score float64, matched bool) Level {
	switch {
	case !matched:
		return LevelUnrated
	case score >= excellentThreshold:
		return LevelExcellent
	case score >= goodThreshold:
		return LevelGood
	case score >= mixedThreshold:
		return LevelMixed
	case score >= questionableThreshold:
		return LevelQuestionable
	default:
		return LevelAvoid
	}
}

// Recommendation is the fixed guidance text of the level.
func (l Level) Recommendation() string {
	return recommendations[l]
}

// Match is a single keyword occurrence.
type Match struct {
	Keyword      string        `json:"keyword" yaml:"keyword"`
	Category     rule.Category `json:"category" yaml:"category"`
	Polarity     rule.Polarity `json:"polarity" yaml:"polarity"`
	Weight       float64       `json:"weight" yaml:"weight"`
	Contribution float64       `json:"contribution" yaml:"contribution"`
	Offset       int           `json:"offset" yaml:"offset"`
}

// Result is the outcome of one evaluation. It holds no identity or time so
// equal inputs always produce equal results.
type Result struct {
	Score          float64                   `json:"score" yaml:"score"`
	Level          Level                     `json:"level" yaml:"level"`
	Recommendation string                    `json:"recommendation" yaml:"recommendation"`
	Dominant       rule.Category             `json:"dominant" yaml:"dominant"`
	Breakdown      map[rule.Category]float64 `json:"breakdown" yaml:"breakdown"`
	Matches        []Match                   `json:"matches" yaml:"matches"`
	Positive       float64                   `json:"positive" yaml:"positive"`
	Negative       float64                   `json:"negative" yaml:"negative"`
	Words          int                       `json:"words" yaml:"words"`
}

// Matched reports whether any keyword matched.
func (r *Result) Matched() bool {
	return r != nil && len(r.Matches) > 0
}

// Net is the signed sum of all contributions.
func (r *Result) Net() float64 {
	if r == nil {
		return 0
	}
	return r.Positive - r.Negative
}
