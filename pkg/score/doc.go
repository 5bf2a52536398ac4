// Package score evaluates text against a rule set and produces an alignment
// score between 0 and 100 with a per category breakdown.
//
// The overall score is a smoothed ratio of positive to total evidence:
//
//	score = 100 * (positive + prior) / (positive + negative + 2*prior)
//
// so text without any matching keyword scores exactly 50. A rule set may
// replace this with its own expression (see rule.Scoring.Formula).
package score
