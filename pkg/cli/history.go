package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mchmarny/agape/pkg/data"
	"github.com/mchmarny/agape/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

const dateFormat = "2006-01-02"

const (
	flagSince  = "since"
	flagLevel  = "level"
	flagSource = "source"
	flagLimit  = "limit"
)

func sinceFlag() urfave.Flag {
	return &urfave.StringFlag{
		Name:  flagSince,
		Usage: "Only include evaluations created on or after this date (YYYY-MM-DD)",
	}
}

func historyCommand() *urfave.Command {
	return &urfave.Command{
		Name:  "history",
		Usage: "Browse saved evaluations",
		Commands: []*urfave.Command{
			{
				Name:  "list",
				Usage: "List the most recent evaluations",
				Flags: []urfave.Flag{
					sinceFlag(),
					&urfave.StringFlag{
						Name:  flagLevel,
						Usage: "Only include evaluations of this level",
					},
					&urfave.StringFlag{
						Name:  flagSource,
						Usage: "Only include evaluations whose source starts with this prefix (text, file, url, issue, api)",
					},
					&urfave.IntFlag{
						Name:  flagLimit,
						Usage: "Maximum number of evaluations to list",
						Value: data.EvaluationLimitDefault,
					},
				},
				Action: cmdHistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show a single evaluation",
				ArgsUsage: "<id>",
				Action:    cmdHistoryShow,
			},
			{
				Name:   "summary",
				Usage:  "Aggregate scores and categories of saved evaluations",
				Flags:  []urfave.Flag{sinceFlag()},
				Action: cmdHistorySummary,
			},
			{
				Name:   "state",
				Usage:  "Print row counts of the history database",
				Action: cmdHistoryState,
			},
		},
	}
}

func cmdHistoryList(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	since, err := parseDate(cmd.String(flagSince))
	if err != nil {
		return err
	}

	level, err := parseLevel(cmd.String(flagLevel))
	if err != nil {
		return err
	}

	list, err := data.ListEvaluations(cfg.DB, data.ListCriteria{
		Since:  since,
		Level:  level,
		Source: cmd.String(flagSource),
		Limit:  int(cmd.Int(flagLimit)),
	})
	if err != nil {
		return fmt.Errorf("listing evaluations: %w", err)
	}

	return encode(stdout(cmd), cfg.Format, list)
}

func cmdHistoryShow(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return errors.New("evaluation id required")
	}

	e, err := data.GetEvaluation(cfg.DB, id)
	if err != nil {
		return err
	}

	return encode(stdout(cmd), cfg.Format, e)
}

func cmdHistorySummary(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	since, err := parseDate(cmd.String(flagSince))
	if err != nil {
		return err
	}

	s, err := data.GetSummary(cfg.DB, since)
	if err != nil {
		return fmt.Errorf("summarizing evaluations: %w", err)
	}

	return encode(stdout(cmd), cfg.Format, s)
}

func cmdHistoryState(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	state, err := data.GetDataState(cfg.DB)
	if err != nil {
		return fmt.Errorf("getting data state: %w", err)
	}

	return encode(stdout(cmd), cfg.Format, state)
}

// parseDate reads a YYYY-MM-DD date in UTC. Empty means the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

func parseLevel(s string) (score.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	l := score.Level(s)
	if !slices.Contains(score.Levels(), l) {
		return "", fmt.Errorf("invalid level %q", s)
	}
	return l, nil
}
