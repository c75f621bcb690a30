package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TestMethod names the hypothesis test that produced a comparison.
type TestMethod string

const (
	MethodWelch       TestMethod = "welch_t"
	MethodMannWhitney TestMethod = "mann_whitney_u"
)

// TestResult holds a two-sided hypothesis test outcome.
type TestResult struct {
	Method      TestMethod `json:"method"`
	Statistic   float64    `json:"statistic"`
	PValue      float64    `json:"p_value"`
	Significant bool       `json:"significant"`
	Alpha       float64    `json:"alpha"`
}

// WelchTTest compares two sample means without assuming equal variances.
// The p-value comes from the Student-t distribution with
// Welch-Satterthwaite degrees of freedom. Two values per side are needed;
// zero pooled standard error returns ErrNotEvaluated.
func WelchTTest(a, b []float64, alpha float64) (*TestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, ErrInsufficientData
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)

	na := float64(len(a))
	nb := float64(len(b))

	se := math.Sqrt(varA/na + varB/nb)
	if se == 0 {
		return nil, ErrNotEvaluated
	}

	t := (meanA - meanB) / se

	// Welch-Satterthwaite degrees of freedom.
	num := math.Pow(varA/na+varB/nb, 2)
	den := math.Pow(varA/na, 2)/(na-1) + math.Pow(varB/nb, 2)/(nb-1)
	df := num / den

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(math.Abs(t)))

	return &TestResult{
		Method:      MethodWelch,
		Statistic:   t,
		PValue:      clamp01(p),
		Significant: p < alpha,
		Alpha:       alpha,
	}, nil
}

// MannWhitneyU compares two samples without a normality assumption, using
// the normal approximation with tie and continuity corrections. Samples
// where every value across both sides is identical return ErrNotEvaluated.
func MannWhitneyU(a, b []float64, alpha float64) (*TestResult, error) {
	if len(a) < 1 || len(b) < 1 {
		return nil, ErrInsufficientData
	}

	na := float64(len(a))
	nb := float64(len(b))
	n := na + nb

	ranks, tieTerm := rankWithTies(a, b)

	var rankSumA float64
	for i := 0; i < len(a); i++ {
		rankSumA += ranks[i]
	}

	u1 := rankSumA - na*(na+1)/2
	u2 := na*nb - u1
	u := math.Min(u1, u2)

	mu := na * nb / 2
	sigma := math.Sqrt(na * nb / 12 * ((n + 1) - tieTerm/(n*(n-1))))

	if sigma == 0 {
		return nil, ErrNotEvaluated
	}

	// Continuity correction.
	z := (math.Abs(u-mu) - 0.5) / sigma
	if z < 0 {
		z = 0
	}

	p := 2 * (1 - distuv.UnitNormal.CDF(z))

	return &TestResult{
		Method:      MethodMannWhitney,
		Statistic:   u,
		PValue:      clamp01(p),
		Significant: p < alpha,
		Alpha:       alpha,
	}, nil
}

// rankWithTies assigns average ranks over the pooled sample, keeping a's
// ranks in the first len(a) positions, and returns sum(t^3 - t) over the
// tie groups.
func rankWithTies(a, b []float64) ([]float64, float64) {
	type entry struct {
		value float64
		pos   int
	}

	pooled := make([]entry, 0, len(a)+len(b))

	for i, v := range a {
		pooled = append(pooled, entry{v, i})
	}

	for i, v := range b {
		pooled = append(pooled, entry{v, len(a) + i})
	}

	sort.Slice(pooled, func(i, j int) bool { return pooled[i].value < pooled[j].value })

	ranks := make([]float64, len(pooled))
	tieTerm := 0.0

	for i := 0; i < len(pooled); {
		j := i
		for j < len(pooled) && pooled[j].value == pooled[i].value {
			j++
		}

		avg := (float64(i+1) + float64(j)) / 2

		for k := i; k < j; k++ {
			ranks[pooled[k].pos] = avg
		}

		t := float64(j - i)
		tieTerm += t*t*t - t

		i = j
	}

	return ranks, tieTerm
}

// EffectBucket is Cohen's conventional label for an effect size.
type EffectBucket string

const (
	EffectNegligible EffectBucket = "negligible"
	EffectSmall      EffectBucket = "small"
	EffectMedium     EffectBucket = "medium"
	EffectLarge      EffectBucket = "large"
)

// CohenD computes the pooled standard-deviation effect size for two
// samples. Identical constant samples have no effect and report zero;
// constant samples with different means return ErrNotEvaluated.
func CohenD(a, b []float64) (float64, error) {
	if len(a) < 2 || len(b) < 2 {
		return 0, ErrInsufficientData
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)

	na := float64(len(a))
	nb := float64(len(b))

	pooled := math.Sqrt(((na-1)*varA + (nb-1)*varB) / (na + nb - 2))

	if pooled == 0 {
		if meanA == meanB {
			return 0, nil
		}

		return 0, ErrNotEvaluated
	}

	return (meanA - meanB) / pooled, nil
}

// BucketEffect maps |d| onto Cohen's conventional thresholds.
func BucketEffect(d float64) EffectBucket {
	abs := math.Abs(d)

	switch {
	case abs < 0.2:
		return EffectNegligible
	case abs < 0.5:
		return EffectSmall
	case abs < 0.8:
		return EffectMedium
	default:
		return EffectLarge
	}
}

// effectAtLeast reports whether the bucket reaches the threshold bucket.
func effectAtLeast(bucket, threshold EffectBucket) bool {
	order := map[EffectBucket]int{
		EffectNegligible: 0,
		EffectSmall:      1,
		EffectMedium:     2,
		EffectLarge:      3,
	}

	return order[bucket] >= order[threshold]
}
