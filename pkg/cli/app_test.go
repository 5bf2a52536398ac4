package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/mchmarny/agape/pkg/impact"
	"github.com/mchmarny/agape/pkg/logging"
	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRulesYAML = `version: 1
match: word
scoring:
  prior: 1
rules:
  - category: kindness
    keywords: [kind, gentle]
    weight: 1
    polarity: 1
    tier: moral
  - category: cruelty
    keywords: [cruel]
    weight: 2
    polarity: -1
    tier: moral
`

func TestMain(m *testing.M) {
	color.NoColor = true
	logging.SetDefaultCLILogger("error")
	os.Exit(m.Run())
}

func testScorer(t *testing.T) *score.Scorer {
	t.Helper()
	rs, err := rule.Parse([]byte(testRulesYAML), rule.FormatYAML)
	require.NoError(t, err)
	s, err := score.New(rs)
	require.NoError(t, err)
	return s
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

// testEnv is an isolated config dir, database and rules file.
type testEnv struct {
	dir   string
	rules string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		dir:   dir,
		rules: writeTestFile(t, dir, "rules.yaml", testRulesYAML),
	}
}

// run executes the app once with the global flags of the env in front of args.
func (e *testEnv) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(input)

	full := append([]string{
		appName,
		"--config", e.dir,
		"--db", filepath.Join(e.dir, "test.db"),
		"--rules", e.rules,
	}, args...)

	err := app.Run(context.Background(), full)
	return out.String(), err
}

func TestApp_EvalText(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--format", "json", "eval", "be kind and gentle")
	require.NoError(t, err)

	var got evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "text", got.Source)
	assert.Empty(t, got.ID)
	require.NotNil(t, got.Result)
	assert.Equal(t, 75.0, got.Result.Score)
	assert.Equal(t, score.LevelGood, got.Result.Level)
	assert.Equal(t, rule.Category("kindness"), got.Result.Dominant)
	assert.Len(t, got.Result.Matches, 2)
}

func TestApp_EvalStdin(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "that was cruel\n", "--format", "json", "eval")
	require.NoError(t, err)

	var got evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "stdin", got.Source)
	assert.Equal(t, 25.0, got.Result.Score)
	assert.Equal(t, score.LevelAvoid, got.Result.Level)
}

func TestApp_EvalEmptyInput(t *testing.T) {
	env := newTestEnv(t)
	empty := writeTestFile(t, env.dir, "empty.txt", "")

	tests := []struct {
		name   string
		input  string
		args   []string
		source string
	}{
		{"empty stdin", "", []string{"eval"}, "stdin"},
		{"blank stdin", "  \n", []string{"eval"}, "stdin"},
		{"empty file", "", []string{"eval", "--file", empty}, "file:" + empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json"}, tt.args...)
			out, err := env.run(t, tt.input, args...)
			require.NoError(t, err)

			var got evalOutput
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, tt.source, got.Source)
			assert.Equal(t, score.Neutral, got.Result.Score)
			assert.Equal(t, score.LevelUnrated, got.Result.Level)
			assert.Empty(t, got.Result.Matches)
		})
	}

	out, err := env.run(t, "", "--format", "json", "batch", "--file", empty)
	require.NoError(t, err)
	var batch []*evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	require.Len(t, batch, 1)
	assert.Equal(t, score.Neutral, batch[0].Result.Score)
}

func TestApp_EvalFileWithWeight(t *testing.T) {
	env := newTestEnv(t)
	p := writeTestFile(t, env.dir, "note.txt", "Be kind.")

	out, err := env.run(t, "", "--format", "json", "eval", "--file", p, "--weight", "kindness=2")
	require.NoError(t, err)

	var got evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "file:"+p, got.Source)
	assert.Equal(t, "note.txt", got.Title)
	// P=2, N=0: 100*3/4
	assert.Equal(t, 75.0, got.Result.Score)
}

func TestApp_EvalErrors(t *testing.T) {
	env := newTestEnv(t)
	p := writeTestFile(t, env.dir, "note.txt", "Be kind.")

	_, err := env.run(t, "", "eval", "--weight", "unknown=1", "kind")
	require.Error(t, err)
	assert.ErrorIs(t, err, score.ErrInvalidOverride)

	_, err = env.run(t, "", "eval", "--file", p, "kind")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one of")
}

func TestApp_EvalSaveAndHistory(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--format", "json", "eval", "--save", "kind words")
	require.NoError(t, err)

	var saved evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.NotEmpty(t, saved.ID)

	out, err = env.run(t, "", "--format", "json", "history", "show", saved.ID)
	require.NoError(t, err)
	assert.Contains(t, out, saved.ID)
	assert.Contains(t, out, "kind words")

	out, err = env.run(t, "", "--format", "table", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, saved.ID)

	out, err = env.run(t, "", "--format", "yaml", "history", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "evaluations: 1")

	_, err = env.run(t, "", "history", "show", "missing")
	require.Error(t, err)
}

func TestApp_InvalidFormat(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "--format", "xml", "eval", "kind")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestApp_InvalidRules(t *testing.T) {
	env := newTestEnv(t)
	env.rules = writeTestFile(t, env.dir, "bad.yaml", "rules:\n  - category: kindness\n    weight: 1\n    polarity: 1\n")

	_, err := env.run(t, "", "eval", "kind")
	require.Error(t, err)
	assert.ErrorIs(t, err, rule.ErrInvalidConfig)
}

func TestApp_RulesCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "rules", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid (2 rules, 2 categories, match word)")

	bad := writeTestFile(t, env.dir, "bad.yaml", "scoring:\n  formula: \"positive +\"\nrules:\n  - category: kindness\n    keywords: [kind]\n    weight: 1\n    polarity: 1\n")
	_, err = env.run(t, "", "rules", "validate", "--file", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, rule.ErrInvalidConfig)

	out, err = env.run(t, "", "--format", "table", "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "kindness")
	assert.Contains(t, out, "cruel")
}

func TestApp_ImpactCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--format", "json", "impact", "value",
		"--utility", "362", "--people", "345000000", "--cost", "15000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "109890000000")

	out, err = env.run(t, "", "--format", "json", "impact", "potential", "--creativity", "0.7")
	require.NoError(t, err)
	var got impact.Option
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, impact.KindPotential, got.Kind)
	assert.InDelta(t, 0.49, got.Value, 1e-9)

	_, err = env.run(t, "", "impact", "potential", "--mass", "0", "--creativity", "1")
	require.Error(t, err)
}

func TestApp_Reset(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "eval", "--save", "be kind")
	require.NoError(t, err)

	out, err := env.run(t, "n\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")

	out, err = env.run(t, "", "--format", "json", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "be kind")

	out, err = env.run(t, "y\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 evaluations.")

	out, err = env.run(t, "", "reset", "--yes", "--before", "2000-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 evaluations.")

	_, err = env.run(t, "", "reset", "--yes", "--before", "01/01/2000")
	require.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "", firstNonEmpty())
	assert.Equal(t, "", firstNonEmpty("", ""))
	assert.Equal(t, "a", firstNonEmpty("", "a", "b"))
}
