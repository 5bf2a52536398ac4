package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mchmarny/agape/pkg/data"
	"github.com/mchmarny/agape/pkg/impact"
	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

const textPreviewLen = 48

// evalOutput is what eval and batch print per input.
type evalOutput struct {
	ID     string        `json:"id,omitempty" yaml:"id,omitempty"`
	Source string        `json:"source" yaml:"source"`
	Title  string        `json:"title,omitempty" yaml:"title,omitempty"`
	Result *score.Result `json:"result" yaml:"result"`
}

// compareOutput is the result of impact compare.
type compareOutput struct {
	Options []impact.Option `json:"options" yaml:"options"`
	Best    string          `json:"best" yaml:"best"`
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case formatTable:
		rows, err := tableRows(v)
		if err != nil {
			return err
		}
		return renderTable(w, rows)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
}

func renderTable(w io.Writer, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return fmt.Errorf("appending table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	return nil
}

// tableRows flattens the values the CLI prints into rows, header first.
func tableRows(v any) ([][]string, error) {
	switch t := v.(type) {
	case *score.Result:
		return resultRows(t), nil
	case *evalOutput:
		return resultRows(t.Result), nil
	case []*evalOutput:
		rows := [][]string{{"Source", "Score", "Level", "Dominant", "Matches"}}
		for _, o := range t {
			rows = append(rows, []string{
				o.Source,
				formatFloat(o.Result.Score),
				string(o.Result.Level),
				string(o.Result.Dominant),
				strconv.Itoa(len(o.Result.Matches)),
			})
		}
		return rows, nil
	case *data.Evaluation:
		rows := [][]string{
			{"Field", "Value"},
			{"id", t.ID},
			{"created", t.CreatedAt.Format("2006-01-02 15:04:05")},
			{"source", t.Source},
			{"text", preview(t.Text)},
		}
		for _, r := range resultRows(t.Result)[1:] {
			rows = append(rows, r[:2])
		}
		return rows, nil
	case []*data.Evaluation:
		rows := [][]string{{"ID", "Created", "Source", "Score", "Level", "Text"}}
		for _, e := range t {
			rows = append(rows, []string{
				e.ID,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Source,
				formatFloat(e.Result.Score),
				string(e.Result.Level),
				preview(e.Text),
			})
		}
		return rows, nil
	case *data.Summary:
		rows := [][]string{
			{"Metric", "Value"},
			{"evaluations", strconv.FormatInt(t.Evaluations, 10)},
			{"average score", formatFloat(t.AverageScore)},
			{"min score", formatFloat(t.MinScore)},
			{"max score", formatFloat(t.MaxScore)},
		}
		for _, l := range score.Levels() {
			if n, ok := t.Levels[l]; ok {
				rows = append(rows, []string{"level " + string(l), strconv.FormatInt(n, 10)})
			}
		}
		for _, c := range t.Categories {
			rows = append(rows, []string{"category " + string(c.Category), formatFloat(c.Total)})
		}
		return rows, nil
	case *rule.RuleSet:
		rows := [][]string{{"Category", "Tier", "Polarity", "Weight", "Keywords"}}
		for _, r := range t.Rules {
			rows = append(rows, []string{
				string(r.Category),
				r.Tier.String(),
				r.Polarity.String(),
				formatFloat(r.Weight),
				strings.Join(r.Keywords, ", "),
			})
		}
		return rows, nil
	case impact.Option:
		return [][]string{{"Name", "Kind", "Value"}, optionRow(t)}, nil
	case *compareOutput:
		rows := [][]string{{"Name", "Kind", "Value", "Best"}}
		for _, o := range t.Options {
			best := ""
			if o.Name == t.Best {
				best = "*"
			}
			rows = append(rows, append(optionRow(o), best))
		}
		return rows, nil
	case map[string]int64:
		rows := [][]string{{"Name", "Count"}}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			rows = append(rows, []string{k, strconv.FormatInt(t[k], 10)})
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("table format not supported for %T", v)
	}
}

func resultRows(r *score.Result) [][]string {
	rows := [][]string{
		{"Field", "Value", "Detail"},
		{"score", formatFloat(r.Score), string(r.Level)},
		{"recommendation", r.Recommendation, ""},
		{"dominant", string(r.Dominant), ""},
	}

	cats := make([]string, 0, len(r.Breakdown))
	for c := range r.Breakdown {
		cats = append(cats, string(c))
	}
	slices.Sort(cats)
	for _, c := range cats {
		v := r.Breakdown[rule.Category(c)]
		if v == 0 {
			continue
		}
		rows = append(rows, []string{"category " + c, formatFloat(v), ""})
	}

	for _, m := range r.Matches {
		rows = append(rows, []string{
			"match " + m.Keyword,
			formatFloat(m.Contribution),
			fmt.Sprintf("%s @%d", m.Category, m.Offset),
		})
	}
	return rows
}

func optionRow(o impact.Option) []string {
	return []string{o.Name, string(o.Kind), formatFloat(o.Value)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= textPreviewLen {
		return s
	}
	return string(r[:textPreviewLen-3]) + "..."
}
