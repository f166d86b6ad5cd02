package cmd

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan-christopher/bb84sim/bb84"
)

func TestApplyCartesian(t *testing.T) {
	var got [][]interface{}
	applyCartesian(func(x []interface{}) {
		got = append(got, append([]interface{}{}, x...))
	}, [][]interface{}{{1, 2}, {"a"}, {true, false}})

	want := [][]interface{}{
		{1, "a", true},
		{1, "a", false},
		{2, "a", true},
		{2, "a", false},
	}
	assert.Equal(t, want, got)
}

func TestApplyCartesianEmptyDimension(t *testing.T) {
	calls := 0
	applyCartesian(func([]interface{}) { calls++ }, [][]interface{}{{1, 2}, {}})
	assert.Equal(t, 0, calls)
}

func TestSweep(t *testing.T) {
	grid := sweepGrid{
		Bits:      []int{2000},
		Eavesdrop: []bool{false, true},
		Seeds:     []int64{1},
		Trials:    3,
		Threshold: 0.11,
	}
	var buf bytes.Buffer
	kept := 0
	require.NoError(t, sweep(context.Background(), &buf, grid, func(bb84.RunResult) { kept++ }))
	assert.Equal(t, 6, kept)

	rows := csvRows(buf.String())
	require.Len(t, rows, 3)
	assert.Equal(t, columns, rows[0])

	clean, tapped := rows[1], rows[2]
	assert.Equal(t, "false", clean[1])
	assert.Equal(t, "0.000000", clean[5])
	assert.Equal(t, "0", clean[9])

	assert.Equal(t, "true", tapped[1])
	mean, err := strconv.ParseFloat(tapped[5], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, mean, 0.05)
	assert.Equal(t, "0.25", tapped[8])
	assert.Equal(t, "3", tapped[9])

	sifted, err := strconv.ParseFloat(clean[4], 64)
	require.NoError(t, err)
	assert.InDelta(t, 1000, sifted, 150)
}

func TestSweepSingleTrial(t *testing.T) {
	grid := sweepGrid{Bits: []int{100}, Eavesdrop: []bool{false}, Seeds: []int64{3}, Trials: 1, Threshold: 0.11}
	var buf bytes.Buffer
	require.NoError(t, sweep(context.Background(), &buf, grid, nil))
	rows := csvRows(buf.String())
	require.Len(t, rows, 2)
	assert.Equal(t, "0.000000", rows[1][6])
}

func TestSweepInvalidGrid(t *testing.T) {
	base := sweepGrid{Bits: []int{10}, Eavesdrop: []bool{false}, Seeds: []int64{1}, Trials: 1, Threshold: 0.11}
	tests := []struct {
		name   string
		mutate func(*sweepGrid)
	}{
		{"zero trials", func(g *sweepGrid) { g.Trials = 0 }},
		{"zero bits", func(g *sweepGrid) { g.Bits = []int{0} }},
		{"no seeds", func(g *sweepGrid) { g.Seeds = nil }},
		{"bad threshold", func(g *sweepGrid) { g.Threshold = 2 }},
		{"trial seeds overflow", func(g *sweepGrid) { g.Seeds, g.Trials = []int64{math.MaxInt64 - 1}, 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base
			tt.mutate(&g)
			var buf bytes.Buffer
			assert.Error(t, sweep(context.Background(), &buf, g, nil))
			assert.Empty(t, buf.String())
		})
	}
}

func TestSweepLargestSeed(t *testing.T) {
	grid := sweepGrid{Bits: []int{10}, Eavesdrop: []bool{false}, Seeds: []int64{math.MaxInt64 - 1}, Trials: 2, Threshold: 0.11}
	var buf bytes.Buffer
	require.NoError(t, sweep(context.Background(), &buf, grid, nil))
	rows := csvRows(buf.String())
	require.Len(t, rows, 2)
	assert.Equal(t, strconv.FormatInt(math.MaxInt64-1, 10), rows[1][2])
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSweepConfig(t *testing.T) {
	path := writeConfig(t, "bits: [100, 200]\nseeds: [7]\ntrials: 4\n")
	grid, err := loadSweepConfig(path, defaultGrid())
	require.NoError(t, err)
	assert.Equal(t, []int{100, 200}, grid.Bits)
	assert.Equal(t, []int64{7}, grid.Seeds)
	assert.Equal(t, 4, grid.Trials)
	// Left out of the file, so kept from the defaults.
	assert.Equal(t, []bool{false, true}, grid.Eavesdrop)
	assert.Equal(t, defaultGrid().Threshold, grid.Threshold)
}

func TestLoadSweepConfigUnknownField(t *testing.T) {
	path := writeConfig(t, "bits: [100]\nqbits: [5]\n")
	_, err := loadSweepConfig(path, defaultGrid())
	assert.Error(t, err)
}

func TestSweepCommandFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "bits: [100]\neavesdrop: [true]\nseeds: [1, 2]\ntrials: 4\n")
	rows := csvRows(mustExecute(t, "sweep", "--config", path, "--trials", "2"))
	require.Len(t, rows, 3)
	for _, row := range rows[1:] {
		assert.Equal(t, "100", row[0])
		assert.Equal(t, "true", row[1])
		assert.Equal(t, "2", row[3])
	}
	assert.Equal(t, "1", rows[1][2])
	assert.Equal(t, "2", rows[2][2])
}

func TestSweepOutThenInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.rec")
	mustExecute(t, "sweep", "--bits", "64,128", "--eavesdrop", "false", "--seeds", "5", "--trials", "3", "--out", path, "--compress")
	rows := csvRows(mustExecute(t, "inspect", path))
	require.Len(t, rows, 7)
	assert.Equal(t, "64", rows[1][1])
	assert.Equal(t, "5", rows[1][3])
	assert.Equal(t, "7", rows[3][3])
	assert.Equal(t, "128", rows[4][1])
}
