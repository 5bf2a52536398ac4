package rule

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mchmarny/agape/pkg/normalize"
)

// ErrInvalidConfig is wrapped by every rule configuration error.
var ErrInvalidConfig = errors.New("invalid rule configuration")

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		v := fl.Field().Float()
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	})
}

// ConfigError describes a malformed rule entry. Index is -1 for rule set
// level problems.
type ConfigError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	loc := e.Field
	if e.Index >= 0 {
		loc = fmt.Sprintf("rule[%d]", e.Index)
		if e.Field != "" {
			loc += "." + e.Field
		}
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidConfig, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, loc, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate checks the rule set and returns the first problem as a *ConfigError.
func (rs *RuleSet) Validate() error {
	if rs == nil {
		return &ConfigError{Index: -1, Reason: "rule set is nil"}
	}

	if err := validate.Struct(rs); err != nil {
		return toConfigError(-1, err)
	}

	if len(rs.Rules) == 0 {
		return &ConfigError{Index: -1, Field: "rules", Reason: "at least one rule required"}
	}

	for i := range rs.Rules {
		r := &rs.Rules[i]
		if err := validate.Struct(r); err != nil {
			return toConfigError(i, err)
		}
		for j, k := range r.Keywords {
			if normalize.Text(k) == "" {
				return &ConfigError{
					Index:  i,
					Field:  fmt.Sprintf("keywords[%d]", j),
					Reason: fmt.Sprintf("keyword %q has no letters or digits", k),
				}
			}
		}
	}

	return nil
}

// prepare applies defaults and normalizes keywords in place. Duplicate
// keywords within a rule collapse into one.
func (rs *RuleSet) prepare() {
	if rs.Match == "" {
		rs.Match = MatchWord
	}
	if rs.Scoring.Prior == 0 {
		rs.Scoring.Prior = defaultPrior
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		seen := make(map[string]bool, len(r.Keywords))
		list := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			n := normalize.Text(k)
			if n == "" {
				// kept raw so Validate can report it
				list = append(list, k)
				continue
			}
			if seen[n] {
				continue
			}
			seen[n] = true
			list = append(list, n)
		}
		r.Keywords = list
	}
}

func toConfigError(index int, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Index: index, Reason: err.Error()}
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	return &ConfigError{
		Index:  index,
		Field:  field,
		Reason: describe(fe),
	}
}

// fieldPath drops the struct name prefix from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Slice {
			return "at least one value required"
		}
		return "required"
	case "min":
		return fmt.Sprintf("at least %s value(s) required", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s (got %v)", fe.Param(), fe.Value())
	case "finite":
		return fmt.Sprintf("must be a finite number (got %v)", fe.Value())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s (got %v)", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s] (got %v)", fe.Param(), fe.Value())
	case "category":
		return fmt.Sprintf("invalid category %q (lower-case identifier, not %q)", fe.Value(), CategoryNeutral)
	default:
		return fmt.Sprintf("failed %q validation (got %v)", fe.Tag(), fe.Value())
	}
}
