package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mchmarny/agape/pkg/score"
	"github.com/mchmarny/agape/pkg/source"
	urfave "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	flagLines       = "lines"
	flagConcurrency = "concurrency"
)

func batchCommand() *urfave.Command {
	return &urfave.Command{
		Name:  "batch",
		Usage: "Evaluate many inputs and print the results in input order",
		Flags: []urfave.Flag{
			&urfave.StringSliceFlag{
				Name:    flagFile,
				Aliases: []string{"f"},
				Usage:   "File to evaluate (repeatable, stdin when none)",
			},
			&urfave.BoolFlag{
				Name:  flagLines,
				Usage: "Evaluate every non-empty line as its own input",
			},
			&urfave.IntFlag{
				Name:  flagConcurrency,
				Usage: "Maximum number of inputs evaluated at once (default: number of CPUs)",
			},
			weightFlag(),
			saveFlag(),
		},
		Action: cmdBatch,
	}
}

func cmdBatch(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	overrides, err := parseWeights(cmd.StringSlice(flagWeight))
	if err != nil {
		return err
	}

	docs, err := batchInputs(cmd.StringSlice(flagFile), cmd.Bool(flagLines), stdin(cmd))
	if err != nil {
		return err
	}

	results, err := evaluateAll(ctx, cfg.Scorer, docs, overrides, int(cmd.Int(flagConcurrency)))
	if err != nil {
		return err
	}

	list := make([]*evalOutput, len(docs))
	for i, d := range docs {
		list[i] = &evalOutput{Source: d.Source, Title: d.Title, Result: results[i]}
		// sqlite writes stay sequential
		if cmd.Bool(flagSave) {
			if list[i].ID, err = saveResult(cfg, d, results[i]); err != nil {
				return err
			}
		}
	}

	slog.Debug("batch done", "inputs", len(docs))
	return encode(stdout(cmd), cfg.Format, list)
}

// batchInputs reads every file, or r when there are none. With lines set
// each non-empty line is a separate document.
func batchInputs(files []string, lines bool, r io.Reader) ([]*source.Document, error) {
	docs := make([]*source.Document, 0)

	if len(files) == 0 {
		if lines {
			return readLines(r, "stdin")
		}
		d, err := source.FromReader(r, "stdin")
		if err != nil {
			return nil, err
		}
		return append(docs, d), nil
	}

	for _, f := range files {
		if !lines {
			d, err := source.FromFile(f)
			if err != nil {
				return nil, err
			}
			docs = append(docs, d)
			continue
		}

		fh, err := os.Open(filepath.Clean(f))
		if err != nil {
			return nil, fmt.Errorf("error opening file %s: %w", f, err)
		}
		list, err := readLines(fh, "file:"+f)
		fh.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, list...)
	}

	return docs, nil
}

func readLines(r io.Reader, src string) ([]*source.Document, error) {
	docs := make([]*source.Document, 0)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), int(source.MaxTextBytes))
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		docs = append(docs, &source.Document{
			Source: fmt.Sprintf("%s:%d", src, n),
			Text:   line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", src, err)
	}
	return docs, nil
}

// evaluateAll scores docs concurrently. results[i] belongs to docs[i].
func evaluateAll(ctx context.Context, s *score.Scorer, docs []*source.Document, o score.Overrides, limit int) ([]*score.Result, error) {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	results := make([]*score.Result, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, d := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.EvaluateWith(d.Text, o)
			if err != nil {
				return fmt.Errorf("evaluating %s: %w", d.Source, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
