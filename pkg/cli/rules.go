package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/agape/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

func rulesCommand() *urfave.Command {
	return &urfave.Command{
		Name:  "rules",
		Usage: "Inspect and validate rule sets",
		Commands: []*urfave.Command{
			{
				Name:   "list",
				Usage:  "Print the active rule set",
				Action: cmdRulesList,
			},
			{
				Name:  "validate",
				Usage: "Check a rule set and its scoring formula",
				Flags: []urfave.Flag{
					&urfave.StringFlag{
						Name:    flagFile,
						Aliases: []string{"f"},
						Usage:   "Rule set to validate (default: the active rules)",
					},
				},
				Action: cmdRulesValidate,
			},
		},
	}
}

func cmdRulesList(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	return encode(stdout(cmd), cfg.Format, cfg.Scorer.Rules())
}

func cmdRulesValidate(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	path := firstNonEmpty(cmd.String(flagFile), cfg.RulesPath)
	rs, err := loadRules(path)
	if err != nil {
		return err
	}
	if _, err := score.New(rs); err != nil {
		return fmt.Errorf("invalid rule set %s: %w", firstNonEmpty(path, "built-in"), err)
	}

	fmt.Fprintf(stdout(cmd), "%s: valid (%d rules, %d categories, match %s)\n",
		firstNonEmpty(path, "built-in"), len(rs.Rules), len(rs.Categories()), rs.MatchMode())
	return nil
}

