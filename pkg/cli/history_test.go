package cli

import (
	"testing"
	"time"

	"github.com/mchmarny/agape/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("2023-02-29")
	require.Error(t, err)
	_, err = parseDate("yesterday")
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := parseLevel("")
	require.NoError(t, err)
	assert.Empty(t, l)

	l, err = parseLevel(" Good ")
	require.NoError(t, err)
	assert.Equal(t, score.LevelGood, l)

	l, err = parseLevel("unrated")
	require.NoError(t, err)
	assert.Equal(t, score.LevelUnrated, l)

	_, err = parseLevel("great")
	require.Error(t, err)
}

func TestCompareScenarios(t *testing.T) {
	dir := t.TempDir()
	p := writeTestFile(t, dir, "s.yaml", `- name: Present
  kind: value
  value:
    utility: 362
    people: 345000000
    opportunity_cost: 15000000000
- name: Competitor
  kind: value
  value:
    utility: 500
    people: 100000000
`)

	out, err := compareScenarios(p)
	require.NoError(t, err)
	require.Len(t, out.Options, 2)
	assert.Equal(t, "Present", out.Best)

	empty := writeTestFile(t, dir, "empty.yaml", "[]\n")
	_, err = compareScenarios(empty)
	require.Error(t, err)
}
