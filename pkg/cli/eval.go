package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/go-github/v83/github"
	"github.com/mchmarny/agape/pkg/auth"
	"github.com/mchmarny/agape/pkg/data"
	"github.com/mchmarny/agape/pkg/net"
	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
	"github.com/mchmarny/agape/pkg/source"
	urfave "github.com/urfave/cli/v3"
)

const (
	flagFile     = "file"
	flagURL      = "url"
	flagIssue    = "issue"
	flagComments = "comments"
	flagWeight   = "weight"
	flagSave     = "save"
)

func weightFlag() urfave.Flag {
	return &urfave.StringSliceFlag{
		Name:    flagWeight,
		Aliases: []string{"w"},
		Usage:   "Override the weight of a category for this run (category=value, repeatable)",
	}
}

func saveFlag() urfave.Flag {
	return &urfave.BoolFlag{
		Name:  flagSave,
		Usage: "Store the result in the history database",
	}
}

func evalCommand() *urfave.Command {
	return &urfave.Command{
		Name:      "eval",
		Aliases:   []string{"e"},
		Usage:     "Evaluate text for alignment with the rule set",
		ArgsUsage: "[text...]",
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:    flagFile,
				Aliases: []string{"f"},
				Usage:   "Read the text from a file",
			},
			&urfave.StringFlag{
				Name:  flagURL,
				Usage: "Fetch the text from a URL (HTML is reduced to visible text)",
			},
			&urfave.StringFlag{
				Name:  flagIssue,
				Usage: "Read a GitHub issue or pull request (owner/repo#number or URL)",
			},
			&urfave.BoolFlag{
				Name:  flagComments,
				Usage: "Include issue comments (used with --issue)",
			},
			weightFlag(),
			saveFlag(),
		},
		Action: cmdEval,
	}
}

func cmdEval(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	overrides, err := parseWeights(cmd.StringSlice(flagWeight))
	if err != nil {
		return err
	}

	doc, err := readDocument(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	res, err := cfg.Scorer.EvaluateWith(doc.Text, overrides)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", doc.Source, err)
	}

	out := &evalOutput{Source: doc.Source, Title: doc.Title, Result: res}
	if cmd.Bool(flagSave) {
		if out.ID, err = saveResult(cfg, doc, res); err != nil {
			return err
		}
	}

	return encode(stdout(cmd), cfg.Format, out)
}

// readDocument resolves the single input of eval: a flag source, the
// arguments, or stdin.
func readDocument(ctx context.Context, cmd *urfave.Command, cfg *appConfig) (*source.Document, error) {
	args := cmd.Args().Slice()
	file := cmd.String(flagFile)
	u := cmd.String(flagURL)
	issue := cmd.String(flagIssue)

	set := 0
	for _, v := range []string{file, u, issue, strings.Join(args, "")} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return nil, errors.New("only one of text, --file, --url or --issue can be used")
	}

	switch {
	case file != "":
		return source.FromFile(file)
	case u != "":
		client, err := net.GetHTTPClient()
		if err != nil {
			return nil, fmt.Errorf("creating http client: %w", err)
		}
		return source.FromURL(ctx, client, u)
	case issue != "":
		ref, err := source.ParseIssueRef(issue)
		if err != nil {
			return nil, err
		}
		return source.FromGitHubIssue(ctx, newGitHubClient(ctx, cfg), ref, cmd.Bool(flagComments))
	case len(args) > 0:
		// plain text is scored as given, including an empty string
		return &source.Document{Source: data.SourceText, Text: strings.Join(args, " ")}, nil
	default:
		return source.FromReader(stdin(cmd), "stdin")
	}
}

// parseWeights turns category=value pairs into score overrides.
func parseWeights(list []string) (score.Overrides, error) {
	if len(list) == 0 {
		return nil, nil
	}

	o := make(score.Overrides, len(list))
	for _, item := range list {
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: expected category=value, got %q", score.ErrInvalidOverride, item)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: weight for %q is not a number: %q", score.ErrInvalidOverride, k, v)
		}
		o[rule.Category(strings.ToLower(k))] = w
	}
	return o, nil
}

func saveResult(cfg *appConfig, doc *source.Document, res *score.Result) (string, error) {
	e := data.NewEvaluation(doc.Source, doc.Text, res)
	if err := data.SaveEvaluation(cfg.DB, e); err != nil {
		return "", fmt.Errorf("saving evaluation: %w", err)
	}
	slog.Debug("evaluation saved", "id", e.ID, "source", e.Source)
	return e.ID, nil
}

// newGitHubClient uses the stored token when there is one. Public issues
// can still be read without it, at a lower rate limit.
func newGitHubClient(ctx context.Context, cfg *appConfig) *github.Client {
	token, err := getGitHubToken(cfg)
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) {
			slog.Warn("failed to read GitHub token", "error", err)
		}
		slog.Debug("using unauthenticated GitHub client")
		return github.NewClient(nil)
	}
	return github.NewClient(net.GetOAuthClient(ctx, token))
}
