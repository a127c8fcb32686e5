package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	dbAmin = 1e-10
	dbTop  = 80.0
)

// Peak picking windows in seconds, and the threshold above the local mean.
const (
	onsetPreMax  = 0.03
	onsetPreAvg  = 0.10
	onsetPostAvg = 0.10
	onsetWait    = 0.03
	onsetDelta   = 0.07
)

// OnsetStrength computes a spectral flux envelope from a power spectrogram
// (bins x frames): power in dB, half-wave rectified first difference between
// frames, averaged over bins. Frame 0 is always 0.
func OnsetStrength(power *mat.Dense) []float64 {
	bins, frames := power.Dims()
	env := make([]float64, frames)
	if frames < 2 {
		return env
	}

	db := powerToDB(power)
	for k := range bins {
		row := db.RawRowView(k)
		for i := 1; i < frames; i++ {
			if d := row[i] - row[i-1]; d > 0 {
				env[i] += d
			}
		}
	}
	floats.Scale(1/float64(bins), env)
	return env
}

// powerToDB converts power to decibels relative to 1, floored at amin and
// clipped to dbTop below the maximum.
func powerToDB(power *mat.Dense) *mat.Dense {
	var db mat.Dense
	db.Apply(func(_, _ int, v float64) float64 {
		return 10 * math.Log10(math.Max(v, dbAmin))
	}, power)

	floor := mat.Max(&db) - dbTop
	db.Apply(func(_, _ int, v float64) float64 {
		return math.Max(v, floor)
	}, &db)
	return &db
}

// PickOnsets returns the frames where the onset envelope peaks. The envelope
// is rescaled to [0, 1]; frame n is an onset when it is the maximum of the
// preceding 30 ms, exceeds the mean of the surrounding 100 ms by delta, and
// follows the previous onset by more than 30 ms. fps is frames per second.
func PickOnsets(env []float64, fps float64) []int {
	if len(env) == 0 {
		return nil
	}

	norm := make([]float64, len(env))
	copy(norm, env)
	lo, hi := floats.Min(norm), floats.Max(norm)
	if hi-lo <= 0 {
		return nil
	}
	floats.AddConst(-lo, norm)
	floats.Scale(1/(hi-lo), norm)

	preMax := int(onsetPreMax * fps)
	postMax := 1
	preAvg := int(onsetPreAvg * fps)
	postAvg := int(onsetPostAvg*fps) + 1
	wait := int(onsetWait * fps)

	var onsets []int
	last := -wait - 1
	for n, v := range norm {
		if n <= last+wait {
			continue
		}
		if v < windowMax(norm, n-preMax, n+postMax) {
			continue
		}
		if v < windowMean(norm, n-preAvg, n+postAvg)+onsetDelta {
			continue
		}
		onsets = append(onsets, n)
		last = n
	}
	return onsets
}

// windowMax returns the maximum of x[lo:hi] with the bounds clipped to x.
func windowMax(x []float64, lo, hi int) float64 {
	lo, hi = max(lo, 0), min(hi, len(x))
	return floats.Max(x[lo:hi])
}

// windowMean returns the mean of x[lo:hi] with the bounds clipped to x.
func windowMean(x []float64, lo, hi int) float64 {
	lo, hi = max(lo, 0), min(hi, len(x))
	return floats.Sum(x[lo:hi]) / float64(hi-lo)
}

// OnsetTimes converts frame indices to seconds.
func OnsetTimes(frames []int, hopSize, sampleRate int) []float64 {
	times := make([]float64, len(frames))
	for i, f := range frames {
		times[i] = float64(f*hopSize) / float64(sampleRate)
	}
	return times
}
