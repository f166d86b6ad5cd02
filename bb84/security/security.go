// Package security turns an observed QBER into a decision about whether a
// BB84 run was eavesdropped on. Everything here is a pure function of a
// bb84.QBER and caller-chosen parameters, so thresholds can be revisited
// without repeating a simulation.
package security

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alan-christopher/bb84sim/bb84"
)

// DefaultThreshold is the QBER above which BB84 can no longer distill a
// secret key under one-way post-processing (Shor and Preskill, 2000).
const DefaultThreshold = 0.11

var (
	// ErrInvalidThreshold indicates a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("security: invalid threshold")

	// ErrInvalidConfidence indicates a confidence level outside (0, 1).
	ErrInvalidConfidence = errors.New("security: invalid confidence level")
)

// A Verdict is the outcome of assessing a QBER against a threshold.
type Verdict int

const (
	// Inconclusive means the QBER was undefined: nothing survived sifting.
	Inconclusive Verdict = iota
	// Secure means the QBER was at or below the threshold.
	Secure
	// Compromised means the QBER exceeded the threshold.
	Compromised
)

func (v Verdict) String() string {
	switch v {
	case Inconclusive:
		return "inconclusive"
	case Secure:
		return "secure"
	case Compromised:
		return "compromised"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Assess compares q against threshold.
func Assess(q bb84.QBER, threshold float64) (Verdict, error) {
	if err := checkThreshold(threshold); err != nil {
		return Inconclusive, err
	}
	v, ok := q.Value()
	if !ok {
		return Inconclusive, nil
	}
	return verdict(v, threshold), nil
}

// AssessPessimistic compares the pessimistic bound on q (see Pessimistic)
// against threshold, so that small samples are not taken at face value.
func AssessPessimistic(q bb84.QBER, threshold, eps float64) (Verdict, error) {
	if err := checkThreshold(threshold); err != nil {
		return Inconclusive, err
	}
	v, ok, err := Pessimistic(q, eps)
	if err != nil || !ok {
		return Inconclusive, err
	}
	return verdict(v, threshold), nil
}

// Pessimistic returns an upper bound on the true error rate which holds
// except with probability eps, by Hoeffding's inequality over the sifted
// sample. The bound is clamped to 1. ok is false if q is undefined.
func Pessimistic(q bb84.QBER, eps float64) (bound float64, ok bool, err error) {
	if !(eps > 0 && eps < 1) {
		return 0, false, fmt.Errorf("%w: eps %v", ErrInvalidConfidence, eps)
	}
	v, ok := q.Value()
	if !ok {
		return 0, false, nil
	}
	nu := math.Sqrt(math.Log(1/eps) / (2 * float64(q.Samples())))
	return math.Min(1, v+nu), true, nil
}

// Bounds is a closed interval of error rates.
type Bounds struct {
	Lo, Hi float64
}

// Contains reports whether x lies within b.
func (b Bounds) Contains(x float64) bool {
	return b.Lo <= x && x <= b.Hi
}

// Interval returns the Wilson score interval for the true error rate at the
// given two-sided confidence level. ok is false if q is undefined.
func Interval(q bb84.QBER, confidence float64) (b Bounds, ok bool, err error) {
	if !(confidence > 0 && confidence < 1) {
		return Bounds{}, false, fmt.Errorf("%w: %v", ErrInvalidConfidence, confidence)
	}
	p, ok := q.Value()
	if !ok {
		return Bounds{}, false, nil
	}
	n := float64(q.Samples())
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	z2 := z * z
	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	half := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom
	return Bounds{
		Lo: math.Max(0, center-half),
		Hi: math.Min(1, center+half),
	}, true, nil
}

func verdict(v, threshold float64) Verdict {
	if v > threshold {
		return Compromised
	}
	return Secure
}

func checkThreshold(threshold float64) error {
	if !(threshold >= 0 && threshold <= 1) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}
