package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// shapiroMaxN bounds the sample size the approximation is calibrated for.
// Larger samples are thinned to this size with a deterministic stride.
const shapiroMaxN = 5000

// NormalityResult holds a Shapiro-Wilk test outcome.
type NormalityResult struct {
	W      float64 `json:"w"`
	PValue float64 `json:"p_value"`
	Normal bool    `json:"normal"`
}

// ShapiroWilk tests the sample for normality using the Royston AS R94
// approximation. A p-value above alpha means the normality hypothesis is
// not rejected. Needs at least three values; constant samples return
// ErrNotEvaluated.
func ShapiroWilk(values []float64, alpha float64) (*NormalityResult, error) {
	if len(values) < 3 {
		return nil, ErrInsufficientData
	}

	x := make([]float64, len(values))
	copy(x, values)
	sort.Float64s(x)

	if len(x) > shapiroMaxN {
		x = thin(x, shapiroMaxN)
	}

	n := len(x)

	if x[n-1] == x[0] {
		return nil, ErrNotEvaluated
	}

	w := shapiroW(x)
	p := shapiroPValue(w, n)

	return &NormalityResult{
		W:      w,
		PValue: p,
		Normal: p > alpha,
	}, nil
}

// shapiroW computes the W statistic for sorted data, 3 <= len(x) <= 5000.
func shapiroW(x []float64) float64 {
	n := len(x)
	norm := distuv.UnitNormal

	// Expected normal order statistics via the Blom approximation.
	m := make([]float64, n)
	ssm := 0.0

	for i := 0; i < n; i++ {
		m[i] = norm.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		ssm += m[i] * m[i]
	}

	a := make([]float64, n)

	if n == 3 {
		a[0] = math.Sqrt(0.5)
		a[2] = -a[0]
	} else {
		rsn := 1 / math.Sqrt(float64(n))
		cn := m[n-1] / math.Sqrt(ssm)

		// Royston's polynomial corrections for the edge weights.
		an := cn + 0.221157*rsn - 0.147981*rsn*rsn -
			2.071190*math.Pow(rsn, 3) + 4.434685*math.Pow(rsn, 4) -
			2.706056*math.Pow(rsn, 5)

		var an1, phi float64

		if n > 5 {
			cn1 := m[n-2] / math.Sqrt(ssm)
			an1 = cn1 + 0.042981*rsn - 0.293762*rsn*rsn -
				1.752461*math.Pow(rsn, 3) + 5.682633*math.Pow(rsn, 4) -
				3.582633*math.Pow(rsn, 5)

			phi = (ssm - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) /
				(1 - 2*an*an - 2*an1*an1)
		} else {
			phi = (ssm - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
		}

		a[n-1] = an
		a[0] = -an

		lo := 1

		if n > 5 {
			a[n-2] = an1
			a[1] = -an1
			lo = 2
		}

		for i := lo; i < n-lo; i++ {
			a[i] = m[i] / math.Sqrt(phi)
		}
	}

	mean := 0.0
	for _, v := range x {
		mean += v
	}

	mean /= float64(n)

	var num, den float64

	for i, v := range x {
		num += a[i] * v
		den += (v - mean) * (v - mean)
	}

	return num * num / den
}

// shapiroPValue maps W to a p-value using Royston's normalizing
// transformations.
func shapiroPValue(w float64, n int) float64 {
	norm := distuv.UnitNormal

	switch {
	case n == 3:
		// Exact small-sample distribution.
		p := (6 / math.Pi) * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))

		return clamp01(p)
	case n <= 11:
		fn := float64(n)
		gamma := 0.459*fn - 2.273
		wPrime := -math.Log(gamma - math.Log(1-w))
		mu := 0.5440 - 0.39978*fn + 0.025054*fn*fn - 0.0006714*fn*fn*fn
		sigma := math.Exp(1.3822 - 0.77857*fn + 0.062767*fn*fn - 0.0020322*fn*fn*fn)

		return clamp01(1 - norm.CDF((wPrime-mu)/sigma))
	default:
		ln := math.Log(float64(n))
		wPrime := math.Log(1 - w)
		mu := -1.5861 - 0.31082*ln - 0.083751*ln*ln + 0.0038915*ln*ln*ln
		sigma := math.Exp(-0.4803 - 0.082676*ln + 0.0030302*ln*ln)

		return clamp01(1 - norm.CDF((wPrime-mu)/sigma))
	}
}

// thin picks k evenly strided values from sorted data.
func thin(sorted []float64, k int) []float64 {
	out := make([]float64, k)
	step := float64(len(sorted)-1) / float64(k-1)

	for i := 0; i < k; i++ {
		out[i] = sorted[int(math.Round(float64(i)*step))]
	}

	return out
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}

	if p > 1 {
		return 1
	}

	return p
}
