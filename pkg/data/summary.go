package data

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/mchmarny/agape/pkg/score"
)

const (
	selectSummarySQL = `SELECT
			COUNT(*),
			COALESCE(AVG(score), 0),
			COALESCE(MIN(score), 0),
			COALESCE(MAX(score), 0)
		FROM evaluation
		WHERE created_at >= ?
	`

	selectLevelCountsSQL = `SELECT level, COUNT(*)
		FROM evaluation
		WHERE created_at >= ?
		GROUP BY level
	`

	selectCategorySummarySQL = `SELECT
			c.category,
			COUNT(*) AS evaluations,
			SUM(CASE WHEN c.matches > 0 THEN 1 ELSE 0 END) AS matched,
			SUM(c.matches) AS occurrences,
			SUM(c.subscore) AS total,
			AVG(c.subscore) AS average,
			MIN(c.subscore) AS min,
			MAX(c.subscore) AS max
		FROM evaluation_category c
		JOIN evaluation e ON c.evaluation_id = e.id
		WHERE e.created_at >= ?
		GROUP BY c.category
		ORDER BY ABS(SUM(c.subscore)) DESC, c.category
	`
)

// CategorySummary aggregates one category across stored evaluations.
type CategorySummary struct {
	Category    string  `json:"category" yaml:"category"`
	Evaluations int64   `json:"evaluations" yaml:"evaluations"`
	Matched     int64   `json:"matched" yaml:"matched"`
	Occurrences int64   `json:"occurrences" yaml:"occurrences"`
	Total       float64 `json:"total" yaml:"total"`
	Average     float64 `json:"average" yaml:"average"`
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
}

// Summary aggregates stored evaluations since a point in time.
type Summary struct {
	Since        time.Time             `json:"since" yaml:"since"`
	Evaluations  int64                 `json:"evaluations" yaml:"evaluations"`
	AverageScore float64               `json:"average_score" yaml:"average_score"`
	MinScore     float64               `json:"min_score" yaml:"min_score"`
	MaxScore     float64               `json:"max_score" yaml:"max_score"`
	Levels       map[score.Level]int64 `json:"levels" yaml:"levels"`
	Categories   []*CategorySummary    `json:"categories" yaml:"categories"`
}

// GetSummary returns the aggregate view of evaluations created at or after since.
func GetSummary(db *sql.DB, since time.Time) (*Summary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	from := since.UTC().Format(timeFormat)
	s := &Summary{
		Since:  since.UTC(),
		Levels: make(map[score.Level]int64),
	}

	if err := db.QueryRow(selectSummarySQL, from).Scan(
		&s.Evaluations, &s.AverageScore, &s.MinScore, &s.MaxScore,
	); err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	s.AverageScore = toFixed(s.AverageScore, 2)

	rows, err := db.Query(selectLevelCountsSQL, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query level counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			level string
			count int64
		)
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		s.Levels[score.Level(level)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate level counts: %w", err)
	}

	if s.Categories, err = GetCategorySummary(db, since); err != nil {
		return nil, err
	}

	return s, nil
}

// GetCategorySummary aggregates category subscores of evaluations created at
// or after since, largest absolute total first.
func GetCategorySummary(db *sql.DB, since time.Time) ([]*CategorySummary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectCategorySummarySQL, since.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to query category summary: %w", err)
	}
	defer rows.Close()

	list := make([]*CategorySummary, 0)
	for rows.Next() {
		c := &CategorySummary{}
		if err := rows.Scan(
			&c.Category, &c.Evaluations, &c.Matched, &c.Occurrences,
			&c.Total, &c.Average, &c.Min, &c.Max,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		c.Total = toFixed(c.Total, 4)
		c.Average = toFixed(c.Average, 4)
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category summary: %w", err)
	}

	return list, nil
}

func toFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Round(num*output) / output
}
