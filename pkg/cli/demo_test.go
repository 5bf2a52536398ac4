package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDemo(t *testing.T) {
	s, err := score.New(rule.Default())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runDemo(&buf, s))

	out := buf.String()
	for _, a := range demoActions {
		assert.Contains(t, out, "Action: "+a)
	}
	assert.Contains(t, out, "Impact scenarios")
	assert.Contains(t, out, "* Serve a whole nation")
	assert.Contains(t, out, "109890000000")
}

func TestRunInteractive(t *testing.T) {
	s := testScorer(t)

	var (
		buf   bytes.Buffer
		saved []string
	)
	in := strings.NewReader("be kind\n\n  be cruel \nQUIT\nnever read\n")
	err := runInteractive(context.Background(), in, &buf, s, func(text string, _ *score.Result) error {
		saved = append(saved, text)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"be kind", "be cruel"}, saved)
	out := buf.String()
	assert.Contains(t, out, "Action: be kind")
	assert.Contains(t, out, "Score:  66.67/100 (good)")
	assert.Contains(t, out, "Score:  25.00/100 (avoid)")
	assert.NotContains(t, out, "never read")
}

func TestRunInteractive_EOF(t *testing.T) {
	s := testScorer(t)
	var buf bytes.Buffer
	require.NoError(t, runInteractive(context.Background(), strings.NewReader("gentle"), &buf, s, nil))
	assert.Contains(t, buf.String(), "Matched: +gentle")
}

func TestPrintDecision_Unrated(t *testing.T) {
	s := testScorer(t)
	var buf bytes.Buffer
	printDecision(&buf, "hello", s.Evaluate("hello"))
	assert.Contains(t, buf.String(), "(unrated)")
	assert.NotContains(t, buf.String(), "Matched:")
	assert.Contains(t, buf.String(), score.LevelUnrated.Recommendation())
}
