package security

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan-christopher/bb84sim/bb84"
)

func mustQBER(t *testing.T, errors, samples int) bb84.QBER {
	t.Helper()
	q, err := bb84.QBERFromCounts(errors, samples)
	require.NoError(t, err)
	return q
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name      string
		q         bb84.QBER
		threshold float64
		want      Verdict
	}{
		{"zero errors", mustQBER(t, 0, 500), DefaultThreshold, Secure},
		{"at threshold", mustQBER(t, 11, 100), DefaultThreshold, Secure},
		{"above threshold", mustQBER(t, 25, 100), DefaultThreshold, Compromised},
		{"undefined", bb84.QBER{}, DefaultThreshold, Inconclusive},
		{"zero threshold", mustQBER(t, 1, 100), 0, Compromised},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Assess(tt.q, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssessInvalidThreshold(t *testing.T) {
	for _, th := range []float64{-0.1, 1.5, math.NaN()} {
		_, err := Assess(mustQBER(t, 0, 10), th)
		assert.ErrorIs(t, err, ErrInvalidThreshold, "threshold %v", th)
	}
}

func TestAssessSimulatedRuns(t *testing.T) {
	seed := int64(42)
	clean, err := bb84.Simulate(4000, false, &seed)
	require.NoError(t, err)
	tapped, err := bb84.Simulate(4000, true, &seed)
	require.NoError(t, err)

	v, err := Assess(clean.QBER(), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, Secure, v)

	v, err = Assess(tapped.QBER(), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, Compromised, v)
}

func TestPessimistic(t *testing.T) {
	bound, ok, err := Pessimistic(mustQBER(t, 0, 100), 1e-2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(math.Log(100)/200), bound, 1e-9)

	bound, ok, err = Pessimistic(mustQBER(t, 9, 10), 1e-9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, bound)

	_, ok, err = Pessimistic(bb84.QBER{}, 1e-2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Pessimistic(mustQBER(t, 0, 10), 0)
	assert.ErrorIs(t, err, ErrInvalidConfidence)
}

func TestAssessPessimistic(t *testing.T) {
	// 5% observed error over a tiny sample cannot be vouched for at 11%.
	v, err := AssessPessimistic(mustQBER(t, 1, 20), DefaultThreshold, 1e-3)
	require.NoError(t, err)
	assert.Equal(t, Compromised, v)

	v, err = AssessPessimistic(mustQBER(t, 0, 100000), DefaultThreshold, 1e-3)
	require.NoError(t, err)
	assert.Equal(t, Secure, v)

	v, err = AssessPessimistic(bb84.QBER{}, DefaultThreshold, 1e-3)
	require.NoError(t, err)
	assert.Equal(t, Inconclusive, v)
}

func TestInterval(t *testing.T) {
	b, ok, err := Interval(mustQBER(t, 0, 1000), 0.95)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0, b.Lo, 1e-9)
	assert.InDelta(t, 0.003827, b.Hi, 1e-5)

	b, ok, err = Interval(mustQBER(t, 250, 1000), 0.95)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, b.Contains(0.25), "interval %+v should contain 0.25", b)
	assert.Less(t, b.Hi-b.Lo, 0.06)

	_, ok, err = Interval(bb84.QBER{}, 0.95)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, c := range []float64{0, 1, -1, math.NaN()} {
		_, _, err := Interval(mustQBER(t, 1, 10), c)
		assert.ErrorIs(t, err, ErrInvalidConfidence, "confidence %v", c)
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "secure", Secure.String())
	assert.Equal(t, "compromised", Compromised.String())
	assert.Equal(t, "inconclusive", Inconclusive.String())
	assert.Equal(t, "verdict(9)", Verdict(9).String())
}
