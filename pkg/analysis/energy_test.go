package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestBandEnergyDistribution(t *testing.T) {
	const sr = 44100
	samples := tones(sr, 2, []float64{100, 500}, []float64{0.8, 0.2})

	cfg := DefaultConfig()
	cfg.FFTSize = 2048
	cfg.HopSize = 512

	r, err := Analyze(samples, sr, cfg)
	require.NoError(t, err)

	means := map[string]float64{}
	for _, m := range r.MeanBandEnergy() {
		means[m.Name] = m.Mean
	}
	t.Logf("band means: %v", means)

	assert.Greater(t, means["bass"], 1.3*means["mid"])
	assert.Greater(t, means["bass"], 2*means["treble"])
}

func TestBandScaleIndependent(t *testing.T) {
	const sr = 22050
	samples := tones(sr, 1, []float64{100, 1000}, []float64{0.8, 0.01})

	cfg := DefaultConfig()
	cfg.BandScale = BandScaleIndependent

	r, err := Analyze(samples, sr, cfg)
	require.NoError(t, err)

	for _, name := range []string{"bass", "mid"} {
		b, ok := r.Band(name)
		require.True(t, ok)
		p99 := Percentile(b.Energy, 99)
		assert.InDelta(t, 1, p99, 1e-6, name)
	}
}

func TestPercentileScale(t *testing.T) {
	curve := make([]float64, 100)
	for i := range curve {
		curve[i] = float64(i + 1)
	}
	curve[99] = 1000

	scaled := PercentileScale(curve)
	require.Len(t, scaled, 100)
	assert.Greater(t, scaled[99], 1.0, "values above the percentile are not clamped")
	assert.Less(t, scaled[98], 1.0+1e-9)
	assert.Equal(t, 1.0, curve[0], "input must not change")

	zeros := PercentileScale(make([]float64, 10))
	for _, v := range zeros {
		assert.Zero(t, v)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	assert.Equal(t, 5.0, Percentile(values, 100))
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, values)
	assert.Zero(t, Percentile(nil, 99))
}

func TestPercentileEstimator(t *testing.T) {
	curve := make([]float64, 100)
	for i := range curve {
		curve[i] = float64(i + 1)
	}

	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"median of four", []float64{1, 2, 3, 4}, 50, 2},
		{"p99 of 1..100", curve, 99, 99},
		{"interpolated", []float64{10, 20}, 75, 15},
		{"single", []float64{7}, 50, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestBandScaleOrdering(t *testing.T) {
	const sr = 44100
	samples := tones(sr, 2, []float64{100, 500}, []float64{0.8, 0.2})

	means := func(mode BandScale) map[string]float64 {
		cfg := DefaultConfig()
		cfg.BandScale = mode
		r, err := Analyze(samples, sr, cfg)
		require.NoError(t, err)
		out := map[string]float64{}
		for _, m := range r.MeanBandEnergy() {
			out[m.Name] = m.Mean
		}
		return out
	}

	shared := means(BandScaleShared)
	independent := means(BandScaleIndependent)
	t.Logf("shared: %v independent: %v", shared, independent)

	assert.Equal(t, BandScaleShared, DefaultConfig().BandScale)
	assert.Greater(t, shared["bass"], 1.3*shared["mid"])
	assert.InDelta(t, independent["bass"], independent["mid"], 0.1)
}

func TestBinRange(t *testing.T) {
	freqs := FFTFrequencies(8000, 8) // 0, 1000, 2000, 3000, 4000

	tests := []struct {
		name     string
		min, max float64
		lo, hi   int
	}{
		{"half open", 1000, 3000, 1, 3},
		{"between bins", 1500, 2500, 2, 3},
		{"negative min clipped", -100, 1000, 0, 1},
		{"past nyquist", 3000, 10000, 3, 5},
		{"at nyquist exclusive", 3000, 4000, 3, 4},
		{"above nyquist", 5000, 9000, 5, 5},
		{"empty", 1100, 1900, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := binRange(freqs, tt.min, tt.max)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestEmptyBandIsZero(t *testing.T) {
	const sr = 8000
	samples := tones(sr, 0.5, []float64{440}, []float64{0.5})

	cfg := DefaultConfig()
	cfg.Bands = []Band{
		{Name: "voice", MinHz: 300, MaxHz: 3400},
		{Name: "ultra", MinHz: 5000, MaxHz: 9000},
	}

	r, err := Analyze(samples, sr, cfg)
	require.NoError(t, err)

	ultra, ok := r.Band("ultra")
	require.True(t, ok)
	require.Len(t, ultra.Energy, r.FrameCount())
	for _, v := range ultra.Energy {
		assert.Zero(t, v)
	}

	voice, _ := r.Band("voice")
	assert.Greater(t, stat.Mean(voice.Energy, nil), 0.5)
}

func TestEnergyCurvesShared(t *testing.T) {
	power := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		0, 10,
	})
	freqs := []float64{0, 100, 200}
	bands := []Band{{Name: "low", MinHz: 0, MaxHz: 150}}

	global, curves := energyCurves(power, freqs, bands, BandScaleShared)
	require.Len(t, global, 2)
	require.Len(t, curves, 1)

	// Frame totals are 4 and 16; low band holds 4 and 6.
	scale := Percentile([]float64{4, 16}, 99) + percentileEpsilon
	assert.InDeltaSlice(t, []float64{4 / scale, 16 / scale}, global, 1e-12)
	assert.InDeltaSlice(t, []float64{4 / scale, 6 / scale}, curves[0].Energy, 1e-12)
}
