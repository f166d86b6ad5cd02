package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/rng"
)

func TestRunText(t *testing.T) {
	out := mustExecute(t, "run", "--bits", "1000", "--seed", "42")
	assert.Contains(t, out, "eavesdropper:     none")
	assert.Contains(t, out, "seed:             42")
	assert.Contains(t, out, "qber:             0.000000")
	assert.Contains(t, out, "verdict:          secure")
	assert.NotContains(t, out, "raw_key_alice")
}

func TestRunShowKeys(t *testing.T) {
	out := mustExecute(t, "run", "--bits", "16", "--seed", "1", "--eavesdrop", "--show-keys")
	assert.Contains(t, out, "raw_key_alice:")
	assert.Contains(t, out, "eve_bases:")
}

func TestRunYAML(t *testing.T) {
	out := mustExecute(t, "run", "--bits", "4000", "--seed", "7", "--eavesdrop", "--format", "yaml")
	var s runSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &s))
	assert.Equal(t, 4000, s.Bits)
	assert.Equal(t, "intercept-resend", s.Eavesdropper)
	require.NotNil(t, s.Seed)
	assert.Equal(t, int64(7), *s.Seed)
	require.NotNil(t, s.QBER)
	assert.InDelta(t, 0.25, *s.QBER, 0.05)
	assert.Equal(t, "compromised", s.Verdict)
	require.NotNil(t, s.IntervalLo)
	require.NotNil(t, s.IntervalHi)
	assert.Less(t, *s.IntervalLo, *s.IntervalHi)
	assert.Len(t, s.Fingerprint, 64)
}

func TestRunDeterministic(t *testing.T) {
	a := mustExecute(t, "run", "--bits", "512", "--seed", "5", "--eavesdrop")
	b := mustExecute(t, "run", "--bits", "512", "--seed", "5", "--eavesdrop")
	assert.Equal(t, a, b)
}

func TestRunInvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"malformed seed", []string{"run", "--seed", "abc"}},
		{"zero bits", []string{"run", "--bits", "0"}},
		{"negative bits", []string{"run", "--bits", "-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, bb84.ErrInvalidParameter)
		})
	}
}

func TestRunBadFormat(t *testing.T) {
	_, err := execute(t, "run", "--format", "xml")
	assert.Error(t, err)
}

func TestSummarizeUndefinedQBER(t *testing.T) {
	// Alice's and Bob's bases disagree on the only photon.
	res, err := bb84.Run(bb84.Options{NumBits: 1, Source: rng.NewFixed(true, false, true, false)})
	require.NoError(t, err)
	s, err := summarize(res, &runFlags{threshold: 0.11, confidence: 0.95})
	require.NoError(t, err)
	assert.Nil(t, s.QBER)
	assert.Nil(t, s.IntervalLo)
	assert.Equal(t, "inconclusive", s.Verdict)
	assert.Nil(t, s.Seed)

	var sb strings.Builder
	require.NoError(t, printSummary(&sb, s))
	assert.Contains(t, sb.String(), "qber:             undefined")
}

func TestRunOutThenInspect(t *testing.T) {
	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "run.rec")
		args := []string{"run", "--bits", "800", "--seed", "9", "--out", path}
		if compress {
			args = append(args, "--compress")
		}
		mustExecute(t, args...)

		rows := csvRows(mustExecute(t, "inspect", path))
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"0", "800", "none", "9"}, rows[1][:4])
		assert.Equal(t, "0.000000", rows[1][5])
		assert.Equal(t, "secure", rows[1][6])
	}
}

func TestInspectMissingFile(t *testing.T) {
	_, err := execute(t, "inspect", filepath.Join(t.TempDir(), "absent.rec"))
	assert.Error(t, err)
}
