package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/agape/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

const (
	flagBefore = "before"
	flagYes    = "yes"
)

func resetCommand() *urfave.Command {
	return &urfave.Command{
		Name:  "reset",
		Usage: "Delete saved evaluations",
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  flagBefore,
				Usage: "Only delete evaluations created before this date (YYYY-MM-DD)",
			},
			&urfave.BoolFlag{
				Name:    flagYes,
				Aliases: []string{"y"},
				Usage:   "Do not ask for confirmation",
			},
		},
		Action: cmdReset,
	}
}

func cmdReset(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	w := stdout(cmd)

	before, err := parseDate(cmd.String(flagBefore))
	if err != nil {
		return err
	}

	if !cmd.Bool(flagYes) {
		if before.IsZero() {
			fmt.Fprintf(w, "This will permanently delete all evaluations in %s\n", cfg.DBPath)
		} else {
			fmt.Fprintf(w, "This will permanently delete evaluations created before %s in %s\n",
				before.Format(dateFormat), cfg.DBPath)
		}
		fmt.Fprint(w, "Are you sure? [y/N]: ")

		answer, err := bufio.NewReader(stdin(cmd)).ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("reading input: %w", err)
		}

		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	n, err := data.DeleteEvaluations(cfg.DB, before)
	if err != nil {
		return fmt.Errorf("deleting evaluations: %w", err)
	}

	slog.Info("evaluations deleted", "count", n, "path", cfg.DBPath)
	fmt.Fprintf(w, "Deleted %d evaluations.\n", n)
	return nil
}
