package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mchmarny/agape/pkg/impact"
	"github.com/mchmarny/agape/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

const ruleWidth = 50

var (
	demoActions = []string{
		"Help an elderly person carry groceries",
		"Tell a lie to avoid embarrassment",
		"Study to gain knowledge for helping others",
		"Share encouraging words with someone struggling",
		"Ignore someone in need to save time",
		"Donate money to help disaster victims",
	}

	demoScenarios = []impact.Scenario{
		{
			Name: "Serve a whole nation",
			Kind: impact.KindValue,
			Value: impact.ValueInput{
				UtilityPerPerson: 362,
				People:           345_000_000,
				OpportunityCost:  15_000_000_000,
			},
		},
		{
			Name:  "Serve a large market",
			Kind:  impact.KindValue,
			Value: impact.ValueInput{UtilityPerPerson: 500, People: 100_000_000},
		},
		{
			Name:      "One person, ordinary creativity",
			Kind:      impact.KindPotential,
			Potential: impact.PotentialInput{Mass: 1, Creativity: 0.7},
		},
		{
			Name:      "A team investing in growth",
			Kind:      impact.KindPotential,
			Potential: impact.PotentialInput{Mass: 100, Creativity: 0.95, Growth: 50, OpportunityCost: 20},
		},
	}
)

func demoCommand() *urfave.Command {
	return &urfave.Command{
		Name:   "demo",
		Usage:  "Score a set of sample actions and impact scenarios",
		Action: cmdDemo,
	}
}

func cmdDemo(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	return runDemo(stdout(cmd), cfg.Scorer)
}

func runDemo(w io.Writer, s *score.Scorer) error {
	title := color.New(color.Bold)
	divider := strings.Repeat("=", ruleWidth)

	fmt.Fprintln(w, divider)
	title.Fprintln(w, "Content alignment demo")
	fmt.Fprintln(w, divider)

	for _, a := range demoActions {
		printDecision(w, a, s.Evaluate(a))
	}

	fmt.Fprintln(w)
	title.Fprintln(w, "Impact scenarios")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))

	options, err := impact.Compute(demoScenarios)
	if err != nil {
		return fmt.Errorf("computing demo scenarios: %w", err)
	}
	best, _ := impact.Best(options)
	for _, o := range options {
		marker := " "
		if o.Name == best.Name {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-34s %-9s %s\n", marker, o.Name, o.Kind, formatFloat(o.Value))
	}

	return nil
}

// printDecision renders a single result for people, colored by level.
func printDecision(w io.Writer, text string, res *score.Result) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Action: %s\n", text)
	levelColor(res.Level).Fprintf(w, "Score:  %.2f/100 (%s)\n", res.Score, res.Level)
	if res.Matched() {
		fmt.Fprintf(w, "Driven by: %s\n", res.Dominant)
		keys := make([]string, 0, len(res.Matches))
		for _, m := range res.Matches {
			sign := "+"
			if m.Contribution < 0 {
				sign = "-"
			}
			keys = append(keys, sign+m.Keyword)
		}
		fmt.Fprintf(w, "Matched: %s\n", strings.Join(keys, ", "))
	}
	fmt.Fprintln(w, res.Recommendation)
}

func levelColor(l score.Level) *color.Color {
	switch l {
	case score.LevelExcellent, score.LevelGood:
		return color.New(color.FgGreen)
	case score.LevelMixed:
		return color.New(color.FgYellow)
	case score.LevelQuestionable, score.LevelAvoid:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}
