package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveOutliers(t *testing.T) {
	tests := []struct {
		name        string
		values      []float64
		wantKept    []float64
		wantRemoved int
	}{
		{
			name:        "single high outlier",
			values:      []float64{10, 10, 11, 9, 10, 50},
			wantKept:    []float64{10, 10, 11, 9, 10},
			wantRemoved: 1,
		},
		{
			name:        "no outliers",
			values:      []float64{20, 21, 19, 20, 20, 21},
			wantKept:    []float64{20, 21, 19, 20, 20, 21},
			wantRemoved: 0,
		},
		{
			name:        "too small to fence",
			values:      []float64{1, 100, 1000},
			wantKept:    []float64{1, 100, 1000},
			wantRemoved: 0,
		},
		{
			name:        "low outlier",
			values:      []float64{0.001, 10, 10, 11, 9, 10},
			wantKept:    []float64{10, 10, 11, 9, 10},
			wantRemoved: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, removed := RemoveOutliers(tt.values)
			assert.Equal(t, tt.wantKept, kept)
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}

func TestRemoveOutliersConverges(t *testing.T) {
	cleaned, removed := RemoveOutliers([]float64{10, 10, 11, 9, 10, 50})
	require.Equal(t, 1, removed)

	again, removed := RemoveOutliers(cleaned)
	assert.Zero(t, removed)
	assert.Equal(t, cleaned, again)
}

func TestRemoveOutliersDoesNotMutateInput(t *testing.T) {
	values := []float64{10, 50, 10, 11, 9, 10}
	_, _ = RemoveOutliers(values)
	assert.Equal(t, []float64{10, 50, 10, 11, 9, 10}, values)
}

func TestDescribe(t *testing.T) {
	d, err := Describe([]float64{9, 10, 10, 10, 11}, 0.95)
	require.NoError(t, err)

	assert.Equal(t, 5, d.N)
	assert.InDelta(t, 10, d.Mean, 1e-9)
	assert.InDelta(t, 10, d.Median, 1e-9)
	assert.InDelta(t, 0.7071, d.StdDev, 1e-4)
	assert.Equal(t, 9.0, d.Min)
	assert.Equal(t, 11.0, d.Max)

	// t(0.975, df=4) = 2.776, margin = 2.776 * 0.7071 / sqrt(5).
	assert.InDelta(t, 10-0.8780, d.CILower, 1e-3)
	assert.InDelta(t, 10+0.8780, d.CIUpper, 1e-3)
	assert.Less(t, d.CILower, d.Mean)
	assert.Greater(t, d.CIUpper, d.Mean)
}

func TestDescribeConstantSample(t *testing.T) {
	d, err := Describe([]float64{5, 5, 5, 5}, 0.95)
	require.NoError(t, err)

	assert.Equal(t, 5.0, d.Mean)
	assert.Equal(t, 5.0, d.CILower)
	assert.Equal(t, 5.0, d.CIUpper)
}

func TestDescribeInsufficient(t *testing.T) {
	_, err := Describe([]float64{1}, 0.95)
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = Describe(nil, 0.95)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestQuantileR7(t *testing.T) {
	sorted := []float64{9, 10, 10, 10, 11, 50}

	// Matches numpy.percentile defaults.
	assert.InDelta(t, 10.0, quantileR7(sorted, 0.25), 1e-9)
	assert.InDelta(t, 10.0, quantileR7(sorted, 0.5), 1e-9)
	assert.InDelta(t, 10.75, quantileR7(sorted, 0.75), 1e-9)
	assert.Equal(t, 9.0, quantileR7(sorted, 0))
	assert.Equal(t, 50.0, quantileR7(sorted, 1))
}
