// Package impact implements the value impact and human potential
// calculators used to compare courses of action.
package impact

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrInvalidInput is wrapped by every calculator input error.
var ErrInvalidInput = errors.New("invalid impact input")

// InputError names the offending input field.
type InputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s (%v): %s", ErrInvalidInput, e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// ValueInput are the terms of the value impact formula.
type ValueInput struct {
	UtilityPerPerson float64 `json:"utility" yaml:"utility"`
	People           float64 `json:"people" yaml:"people"`
	Growth           float64 `json:"growth" yaml:"growth"`
	OpportunityCost  float64 `json:"opportunity_cost" yaml:"opportunity_cost"`
}

// PotentialInput are the terms of the human potential formula.
type PotentialInput struct {
	Mass            float64 `json:"mass" yaml:"mass"`
	Creativity      float64 `json:"creativity" yaml:"creativity"`
	Growth          float64 `json:"growth" yaml:"growth"`
	OpportunityCost float64 `json:"opportunity_cost" yaml:"opportunity_cost"`
}

// ValueImpact returns max(0, U*N + G - O).
func ValueImpact(in ValueInput) (float64, error) {
	if err := check(
		field{"utility", in.UtilityPerPerson},
		field{"people", in.People},
		field{"growth", in.Growth},
		field{"opportunity_cost", in.OpportunityCost},
	); err != nil {
		return 0, err
	}

	v := math.Max(0, in.UtilityPerPerson*in.People+in.Growth-in.OpportunityCost)
	if err := checkResult(v); err != nil {
		return 0, err
	}
	slog.Debug("value impact", "input", in, "value", v)
	return v, nil
}

// HumanPotential returns max(0, M*C^2 + G - O). Mass must be positive.
func HumanPotential(in PotentialInput) (float64, error) {
	if err := check(
		field{"mass", in.Mass},
		field{"creativity", in.Creativity},
		field{"growth", in.Growth},
		field{"opportunity_cost", in.OpportunityCost},
	); err != nil {
		return 0, err
	}
	if in.Mass == 0 {
		return 0, &InputError{Field: "mass", Value: in.Mass, Reason: "must be greater than zero"}
	}

	v := math.Max(0, in.Mass*in.Creativity*in.Creativity+in.Growth-in.OpportunityCost)
	if err := checkResult(v); err != nil {
		return 0, err
	}
	slog.Debug("human potential", "input", in, "value", v)
	return v, nil
}

type field struct {
	name  string
	value float64
}

func check(fields ...field) error {
	for _, f := range fields {
		switch {
		case math.IsNaN(f.value) || math.IsInf(f.value, 0):
			return &InputError{Field: f.name, Value: f.value, Reason: "must be a finite number"}
		case f.value < 0:
			return &InputError{Field: f.name, Value: f.value, Reason: "must not be negative"}
		}
	}
	return nil
}

// checkResult rejects finite inputs whose result overflows.
func checkResult(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InputError{Field: "result", Value: v, Reason: "inputs too large, result is not a finite number"}
	}
	return nil
}
