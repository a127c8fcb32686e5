package analysis

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const percentileEpsilon = 1e-10

// BandCurve is the normalized energy of one frequency band per frame.
type BandCurve struct {
	Band
	Energy []float64 `json:"energy"`
}

// powerSpectrum squares every magnitude.
func powerSpectrum(mags *mat.Dense) *mat.Dense {
	var p mat.Dense
	p.MulElem(mags, mags)
	return &p
}

// bandSum sums power over bins [lo, hi) for every frame.
func bandSum(power *mat.Dense, lo, hi int) []float64 {
	_, frames := power.Dims()
	out := make([]float64, frames)
	for k := lo; k < hi; k++ {
		row := power.RawRowView(k)
		for i, v := range row {
			out[i] += v
		}
	}
	return out
}

// binRange returns the bins whose centre frequency lies in [minHz, maxHz)
// after clipping the range to [0, nyquist]. An empty range has lo == hi.
func binRange(freqs []float64, minHz, maxHz float64) (lo, hi int) {
	if len(freqs) == 0 {
		return 0, 0
	}
	nyquist := freqs[len(freqs)-1]
	pastNyquist := maxHz > nyquist
	minHz = max(minHz, 0)
	maxHz = min(maxHz, nyquist)

	lo = sort.SearchFloat64s(freqs, minHz)
	hi = lo
	for hi < len(freqs) && freqs[hi] < maxHz {
		hi++
	}
	// The Nyquist bin belongs to a band that reaches past it.
	if pastNyquist && hi == len(freqs)-1 && minHz <= nyquist {
		hi = len(freqs)
	}
	return lo, hi
}

// Percentile returns the p-th percentile (0-100) of values without
// modifying them. It uses gonum's LinInterp quantile (Hyndman and Fan
// type 4, interpolating at p*n), not the type 7 estimator NumPy defaults
// to: the median of {1, 2, 3, 4} is 2, not 2.5.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}

// PercentileScale divides curve by its 99th percentile plus a small epsilon.
// Values above the percentile stay above 1.
func PercentileScale(curve []float64) []float64 {
	return scaleBy(curve, Percentile(curve, 99)+percentileEpsilon)
}

func scaleBy(curve []float64, scale float64) []float64 {
	out := make([]float64, len(curve))
	for i, v := range curve {
		out[i] = v / scale
	}
	return out
}

// energyCurves computes the normalized global energy curve and one curve per band.
func energyCurves(power *mat.Dense, freqs []float64, bands []Band, mode BandScale) ([]float64, []BandCurve) {
	rows, _ := power.Dims()
	raw := bandSum(power, 0, rows)
	globalScale := Percentile(raw, 99) + percentileEpsilon

	curves := make([]BandCurve, len(bands))
	for i, b := range bands {
		lo, hi := binRange(freqs, b.MinHz, b.MaxHz)
		sum := bandSum(power, lo, hi)

		scale := globalScale
		if mode == BandScaleIndependent {
			scale = Percentile(sum, 99) + percentileEpsilon
		}
		curves[i] = BandCurve{Band: b, Energy: scaleBy(sum, scale)}
	}

	return scaleBy(raw, globalScale), curves
}
