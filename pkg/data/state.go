package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	stateQueries = map[string]string{
		"evaluation":          "SELECT COUNT(*) FROM evaluation",
		"evaluation_category": "SELECT COUNT(*) FROM evaluation_category",
		"category":            "SELECT COUNT(DISTINCT category) FROM evaluation_category",
		"source":              "SELECT COUNT(DISTINCT source) FROM evaluation",
	}

	deleteEvaluationCategoriesSQL = `DELETE FROM evaluation_category
		WHERE evaluation_id IN (SELECT id FROM evaluation WHERE created_at < ?)
	`

	deleteEvaluationsSQL = `DELETE FROM evaluation WHERE created_at < ?`
)

// GetDataState returns the current state of the database.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64)
	for k, v := range stateQueries {
		var count int64
		if err := db.QueryRow(v).Scan(&count); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}

	return state, nil
}

// DeleteEvaluations removes every evaluation created before the given time
// and returns the number deleted. A zero time deletes everything.
func DeleteEvaluations(db *sql.DB, before time.Time) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	if before.IsZero() {
		before = time.Now().UTC().Add(time.Hour)
	}
	cutoff := before.UTC().Format(timeFormat)

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(deleteEvaluationCategoriesSQL, cutoff); err != nil {
		rollbackTransaction(tx)
		return 0, fmt.Errorf("error deleting evaluation categories: %w", err)
	}

	res, err := tx.Exec(deleteEvaluationsSQL, cutoff)
	if err != nil {
		rollbackTransaction(tx)
		return 0, fmt.Errorf("error deleting evaluations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading deleted count: %w", err)
	}

	slog.Debug("deleted evaluations", "before", cutoff, "count", n)
	return n, nil
}
