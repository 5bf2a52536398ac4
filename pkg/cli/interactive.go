package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mchmarny/agape/pkg/data"
	"github.com/mchmarny/agape/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

var quitWords = []string{"quit", "exit", "q"}

func interactiveCommand() *urfave.Command {
	return &urfave.Command{
		Name:    "interactive",
		Aliases: []string{"i"},
		Usage:   "Evaluate actions typed one per line until quit",
		Flags:   []urfave.Flag{saveFlag()},
		Action:  cmdInteractive,
	}
}

func cmdInteractive(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	var save func(text string, res *score.Result) error
	if cmd.Bool(flagSave) {
		save = func(text string, res *score.Result) error {
			return data.SaveEvaluation(cfg.DB, data.NewEvaluation(data.SourceText, text, res))
		}
	}

	return runInteractive(ctx, stdin(cmd), stdout(cmd), cfg.Scorer, save)
}

// runInteractive reads lines from r until EOF or a quit word. Blank lines
// are skipped.
func runInteractive(ctx context.Context, r io.Reader, w io.Writer, s *score.Scorer, save func(string, *score.Result) error) error {
	fmt.Fprintln(w, "Enter actions to evaluate (or 'quit' to exit):")

	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "\nAction to evaluate: ")
		if !sc.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if slices.Contains(quitWords, strings.ToLower(line)) {
			break
		}

		res := s.Evaluate(line)
		printDecision(w, line, res)

		if save != nil {
			if err := save(line, res); err != nil {
				return fmt.Errorf("saving evaluation: %w", err)
			}
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}
