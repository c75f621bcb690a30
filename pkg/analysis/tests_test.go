package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelchTTestSeparatedSamples(t *testing.T) {
	a := []float64{9, 10, 10, 10, 11}
	b := []float64{20, 21, 19, 20, 20, 21}

	res, err := WelchTTest(a, b, 0.05)
	require.NoError(t, err)

	assert.Equal(t, MethodWelch, res.Method)
	assert.InDelta(t, -23.06, res.Statistic, 0.05)
	assert.Less(t, res.PValue, 0.001)
	assert.True(t, res.Significant)
}

func TestWelchTTestIdenticalSamples(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}

	res, err := WelchTTest(a, a, 0.05)
	require.NoError(t, err)

	assert.Zero(t, res.Statistic)
	assert.InDelta(t, 1.0, res.PValue, 1e-9)
	assert.False(t, res.Significant)
}

func TestWelchTTestZeroVariance(t *testing.T) {
	_, err := WelchTTest([]float64{5, 5, 5}, []float64{5, 5, 5}, 0.05)
	require.ErrorIs(t, err, ErrNotEvaluated)
}

func TestWelchTTestInsufficient(t *testing.T) {
	_, err := WelchTTest([]float64{1}, []float64{1, 2}, 0.05)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestMannWhitneyUKnownValue(t *testing.T) {
	// U = 0, mean 4.5, sigma = sqrt(5.25); with continuity correction
	// z = 4/sqrt(5.25), two-sided p ~ 0.0809.
	res, err := MannWhitneyU([]float64{1, 2, 3}, []float64{4, 5, 6}, 0.05)
	require.NoError(t, err)

	assert.Equal(t, MethodMannWhitney, res.Method)
	assert.Zero(t, res.Statistic)
	assert.InDelta(t, 0.0809, res.PValue, 0.001)
	assert.False(t, res.Significant)
}

func TestMannWhitneyUSeparatedSamples(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b := []float64{21, 22, 23, 24, 25, 26, 27, 28, 29, 30}

	res, err := MannWhitneyU(a, b, 0.05)
	require.NoError(t, err)

	assert.Less(t, res.PValue, 0.001)
	assert.True(t, res.Significant)
}

func TestMannWhitneyUHandlesTies(t *testing.T) {
	res, err := MannWhitneyU([]float64{5, 5, 5, 6}, []float64{5, 7, 7, 8}, 0.05)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.PValue, 0.0)
	assert.LessOrEqual(t, res.PValue, 1.0)
}

func TestMannWhitneyUAllIdentical(t *testing.T) {
	_, err := MannWhitneyU([]float64{3, 3, 3}, []float64{3, 3, 3}, 0.05)
	require.ErrorIs(t, err, ErrNotEvaluated)
}

func TestCohenD(t *testing.T) {
	a := []float64{9, 10, 10, 10, 11}
	b := []float64{20, 21, 19, 20, 20, 21}

	d, err := CohenD(a, b)
	require.NoError(t, err)

	// Pooled sd ~ 0.733 against a mean gap of ~10.17.
	assert.InDelta(t, -13.87, d, 0.05)
	assert.Equal(t, EffectLarge, BucketEffect(d))
}

func TestCohenDIdenticalSamples(t *testing.T) {
	a := []float64{1, 2, 3}

	d, err := CohenD(a, a)
	require.NoError(t, err)
	assert.Zero(t, d)
	assert.Equal(t, EffectNegligible, BucketEffect(d))
}

func TestCohenDConstantSamples(t *testing.T) {
	d, err := CohenD([]float64{4, 4, 4}, []float64{4, 4, 4})
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = CohenD([]float64{4, 4, 4}, []float64{9, 9, 9})
	require.ErrorIs(t, err, ErrNotEvaluated)
}

func TestBucketEffectThresholds(t *testing.T) {
	tests := []struct {
		d    float64
		want EffectBucket
	}{
		{0, EffectNegligible},
		{0.19, EffectNegligible},
		{0.2, EffectSmall},
		{-0.35, EffectSmall},
		{0.5, EffectMedium},
		{0.79, EffectMedium},
		{0.8, EffectLarge},
		{-13.9, EffectLarge},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketEffect(tt.d), "d=%v", tt.d)
	}
}

func TestEffectAtLeast(t *testing.T) {
	assert.True(t, effectAtLeast(EffectLarge, EffectMedium))
	assert.True(t, effectAtLeast(EffectMedium, EffectMedium))
	assert.False(t, effectAtLeast(EffectSmall, EffectMedium))
}
