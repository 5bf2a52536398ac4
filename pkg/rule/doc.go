// Package rule defines the keyword rules the alignment scorer evaluates text
// against: categories, polarity, the four tier truth hierarchy, and the rule
// set document (JSON or YAML) with its load-time validation.
package rule
