// Package analysis turns raw timing samples into cleaned descriptive
// statistics, pairwise significance tests and a ranked recommendation.
package analysis

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInsufficientData reports a sample too small for the requested
	// statistic.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotEvaluated reports a statistic that cannot be computed for
	// the sample, typically because of zero variance.
	ErrNotEvaluated = errors.New("statistic not evaluated")
)

// Descriptive summarizes one cleaned sample. The confidence interval is a
// Student-t interval around the mean.
type Descriptive struct {
	N       int     `json:"n"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
	CILevel float64 `json:"ci_level"`
}

// RemoveOutliers drops values outside the Tukey fences
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Samples with fewer than four values pass
// through untouched because the quartiles are not meaningful. The input is
// not modified; the returned slice is always a fresh copy, second return
// is the number of values removed. Applying the fences to an already
// cleaned sample recomputes them on the cleaned data, so repeated
// application converges.
func RemoveOutliers(values []float64) ([]float64, int) {
	if len(values) < 4 {
		out := make([]float64, len(values))
		copy(out, values)

		return out, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := quantileR7(sorted, 0.25)
	q3 := quantileR7(sorted, 0.75)
	iqr := q3 - q1

	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	kept := make([]float64, 0, len(values))

	for _, v := range values {
		if v >= lower && v <= upper {
			kept = append(kept, v)
		}
	}

	return kept, len(values) - len(kept)
}

// Describe computes descriptive statistics and a two-sided Student-t
// confidence interval at the given level. At least two values are needed
// for the interval.
func Describe(values []float64, ciLevel float64) (*Descriptive, error) {
	if len(values) < 2 {
		return nil, ErrInsufficientData
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := float64(len(values))
	mean := stat.Mean(values, nil)
	sd := stat.StdDev(values, nil)

	d := &Descriptive{
		N:       len(values),
		Mean:    mean,
		Median:  quantileR7(sorted, 0.5),
		StdDev:  sd,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		CILevel: ciLevel,
	}

	if sd == 0 {
		d.CILower = mean
		d.CIUpper = mean

		return d, nil
	}

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}
	margin := t.Quantile((1+ciLevel)/2) * sd / math.Sqrt(n)

	d.CILower = mean - margin
	d.CIUpper = mean + margin

	return d, nil
}

// quantileR7 interpolates a quantile of sorted data with the R-7 rule,
// matching numpy's default.
func quantileR7(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))

	if lo == hi {
		return sorted[lo]
	}

	frac := pos - float64(lo)

	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
