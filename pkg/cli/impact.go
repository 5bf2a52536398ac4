package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/agape/pkg/impact"
	urfave "github.com/urfave/cli/v3"
)

const (
	flagUtility    = "utility"
	flagPeople     = "people"
	flagMass       = "mass"
	flagCreativity = "creativity"
	flagGrowth     = "growth"
	flagCost       = "cost"
)

func impactCommand() *urfave.Command {
	growth := func() urfave.Flag {
		return &urfave.FloatFlag{Name: flagGrowth, Usage: "Additional value from growth"}
	}
	cost := func() urfave.Flag {
		return &urfave.FloatFlag{Name: flagCost, Usage: "Opportunity cost of choosing this option"}
	}

	return &urfave.Command{
		Name:  "impact",
		Usage: "Compute value impact and human potential of options",
		Commands: []*urfave.Command{
			{
				Name:  "value",
				Usage: "Value impact: max(0, utility*people + growth - cost)",
				Flags: []urfave.Flag{
					&urfave.FloatFlag{Name: flagUtility, Usage: "Utility delivered per person"},
					&urfave.FloatFlag{Name: flagPeople, Usage: "Number of people served"},
					growth(),
					cost(),
				},
				Action: cmdImpactValue,
			},
			{
				Name:  "potential",
				Usage: "Human potential: max(0, mass*creativity^2 + growth - cost)",
				Flags: []urfave.Flag{
					&urfave.FloatFlag{Name: flagMass, Usage: "Number of people or resources involved (must be > 0)", Value: 1},
					&urfave.FloatFlag{Name: flagCreativity, Usage: "Creative capacity per unit of mass"},
					growth(),
					cost(),
				},
				Action: cmdImpactPotential,
			},
			{
				Name:  "compare",
				Usage: "Compute every scenario in a file and pick the best",
				Flags: []urfave.Flag{
					&urfave.StringFlag{
						Name:     flagFile,
						Aliases:  []string{"f"},
						Usage:    "YAML or JSON file with a list of scenarios",
						Required: true,
					},
				},
				Action: cmdImpactCompare,
			},
		},
	}
}

func cmdImpactValue(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	v, err := impact.ValueImpact(impact.ValueInput{
		UtilityPerPerson: cmd.Float(flagUtility),
		People:           cmd.Float(flagPeople),
		Growth:           cmd.Float(flagGrowth),
		OpportunityCost:  cmd.Float(flagCost),
	})
	if err != nil {
		return err
	}

	return encode(stdout(cmd), cfg.Format, impact.Option{Name: "value", Kind: impact.KindValue, Value: v})
}

func cmdImpactPotential(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	v, err := impact.HumanPotential(impact.PotentialInput{
		Mass:            cmd.Float(flagMass),
		Creativity:      cmd.Float(flagCreativity),
		Growth:          cmd.Float(flagGrowth),
		OpportunityCost: cmd.Float(flagCost),
	})
	if err != nil {
		return err
	}

	return encode(stdout(cmd), cfg.Format, impact.Option{Name: "potential", Kind: impact.KindPotential, Value: v})
}

func cmdImpactCompare(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	out, err := compareScenarios(cmd.String(flagFile))
	if err != nil {
		return err
	}
	return encode(stdout(cmd), cfg.Format, out)
}

func compareScenarios(path string) (*compareOutput, error) {
	scenarios, err := impact.LoadScenarios(path)
	if err != nil {
		return nil, err
	}

	options, err := impact.Compute(scenarios)
	if err != nil {
		return nil, fmt.Errorf("computing scenarios in %s: %w", path, err)
	}

	best, ok := impact.Best(options)
	if !ok {
		return nil, errors.New("no scenarios to compare")
	}

	return &compareOutput{Options: options, Best: best.Name}, nil
}
