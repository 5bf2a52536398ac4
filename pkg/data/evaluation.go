package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
)

const (
	EvaluationLimitDefault = 50

	SourceText = "text"
	SourceFile = "file"
	SourceURL  = "url"
	SourceAPI  = "api"

	insertEvaluationSQL = `INSERT INTO evaluation (
			id, created_at, source, text, score, level, dominant, matches, result
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertEvaluationCategorySQL = `INSERT INTO evaluation_category (
			evaluation_id, category, subscore, matches
		)
		VALUES (?, ?, ?, ?)
	`

	selectEvaluationSQL = `SELECT
			id, created_at, source, text, result
		FROM evaluation
		WHERE id = ?
	`

	selectEvaluationsSQL = `SELECT
			id, created_at, source, text, result
		FROM evaluation
		WHERE created_at >= ?
		  AND level = COALESCE(?, level)
		  AND source LIKE COALESCE(?, source)
		ORDER BY created_at DESC, id
		LIMIT ?
	`
)

// Evaluation is a persisted scoring result.
type Evaluation struct {
	ID        string        `json:"id" yaml:"id"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	Source    string        `json:"source" yaml:"source"`
	Text      string        `json:"text" yaml:"text"`
	Result    *score.Result `json:"result" yaml:"result"`
}

// NewEvaluation wraps a result with a new identity and the current time.
func NewEvaluation(source, text string, res *score.Result) *Evaluation {
	if source == "" {
		source = SourceText
	}
	return &Evaluation{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Text:      text,
		Result:    res,
	}
}

// ListCriteria narrows ListEvaluations. Zero values match everything.
type ListCriteria struct {
	Since  time.Time
	Level  score.Level
	Source string
	Limit  int
}

// SaveEvaluation stores the evaluation and one row per category subscore.
func SaveEvaluation(db *sql.DB, e *Evaluation) error {
	if db == nil {
		return errDBNotInitialized
	}
	if e == nil || e.Result == nil {
		return errors.New("evaluation with result required")
	}
	if e.ID == "" {
		return errors.New("evaluation id required")
	}

	b, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("error marshaling result %s: %w", e.ID, err)
	}

	counts := make(map[rule.Category]int)
	for _, m := range e.Result.Matches {
		counts[m.Category]++
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(insertEvaluationSQL,
		e.ID, e.CreatedAt.UTC().Format(timeFormat), e.Source, e.Text,
		e.Result.Score, string(e.Result.Level), string(e.Result.Dominant),
		len(e.Result.Matches), string(b),
	); err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("error inserting evaluation %s: %w", e.ID, err)
	}

	stmt, err := tx.Prepare(insertEvaluationCategorySQL)
	if err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("error preparing category insert: %w", err)
	}
	defer stmt.Close()

	for c, v := range e.Result.Breakdown {
		if _, err := stmt.Exec(e.ID, string(c), v, counts[c]); err != nil {
			rollbackTransaction(tx)
			return fmt.Errorf("error inserting category %s for %s: %w", c, e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("saved evaluation", "id", e.ID, "score", e.Result.Score, "categories", len(e.Result.Breakdown))
	return nil
}

// GetEvaluation returns a single evaluation or ErrNotFound.
func GetEvaluation(db *sql.DB, id string) (*Evaluation, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if id == "" {
		return nil, errors.New("evaluation id required")
	}

	e, err := scanEvaluation(db.QueryRow(selectEvaluationSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("evaluation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting evaluation %s: %w", id, err)
	}
	return e, nil
}

// ListEvaluations returns the most recent evaluations matching c.
func ListEvaluations(db *sql.DB, c ListCriteria) ([]*Evaluation, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	limit := c.Limit
	if limit <= 0 {
		limit = EvaluationLimitDefault
	}

	rows, err := db.Query(selectEvaluationsSQL,
		c.Since.UTC().Format(timeFormat),
		optional(string(c.Level)),
		optional(likePrefix(c.Source)),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	list := make([]*Evaluation, 0)
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluations: %w", err)
	}

	return list, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (*Evaluation, error) {
	var (
		e       Evaluation
		created string
		result  string
	)
	if err := row.Scan(&e.ID, &created, &e.Source, &e.Text, &result); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	e.CreatedAt = t

	e.Result = &score.Result{}
	if err := json.Unmarshal([]byte(result), e.Result); err != nil {
		return nil, fmt.Errorf("invalid result for %s: %w", e.ID, err)
	}

	return &e, nil
}

// optional maps empty strings to NULL so COALESCE matches any value.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func likePrefix(v string) string {
	if v == "" {
		return ""
	}
	return v + "%"
}
