package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Tempo search range and prior.
const (
	tempoMinBPM   = 40.0
	tempoMaxBPM   = 240.0
	tempoPriorBPM = 120.0
	// Standard deviation of the log-normal tempo prior, in octaves.
	tempoPriorStd = 1.0
)

// Weight of the log-interval penalty between consecutive beats.
const beatTightness = 100.0

// EstimateTempo estimates the dominant tempo in BPM of an onset envelope
// sampled at fps frames per second. It picks the autocorrelation lag with the
// highest score under a log-normal prior around 120 BPM and refines it with
// parabolic interpolation. It returns 0 when there is no periodicity.
func EstimateTempo(env []float64, fps float64) float64 {
	if len(env) < 3 || fps <= 0 {
		return 0
	}

	x := make([]float64, len(env))
	copy(x, env)
	floats.AddConst(-stat.Mean(x, nil), x)
	if floats.Norm(x, 2) == 0 {
		return 0
	}
	ac := autocorrelate(x)

	minLag := max(1, int(math.Floor(60*fps/tempoMaxBPM)))
	maxLag := min(len(env)-2, int(math.Ceil(60*fps/tempoMinBPM)))
	if minLag >= maxLag {
		return 0
	}

	score := func(lag int) float64 {
		bpm := 60 * fps / float64(lag)
		z := math.Log2(bpm/tempoPriorBPM) / tempoPriorStd
		return ac[lag] * math.Exp(-0.5*z*z)
	}

	best, bestScore := -1, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		if s := score(lag); s > bestScore {
			best, bestScore = lag, s
		}
	}
	if best < 0 {
		return 0
	}

	lag := float64(best)
	if best > minLag && best < maxLag {
		y0, y1, y2 := score(best-1), bestScore, score(best+1)
		if d := y0 - 2*y1 + y2; d < 0 {
			lag += math.Max(-0.5, math.Min(0.5, 0.5*(y0-y2)/d))
		}
	}
	return 60 * fps / lag
}

// autocorrelate returns the linear autocorrelation of x for lags 0..len(x)-1.
func autocorrelate(x []float64) []float64 {
	n := 1
	for n < 2*len(x) {
		n <<= 1
	}
	padded := make([]float64, n)
	copy(padded, x)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, padded)
	for i, c := range coeffs {
		re, im := real(c), imag(c)
		coeffs[i] = complex(re*re+im*im, 0)
	}
	ac := fft.Sequence(nil, coeffs)
	floats.Scale(1/float64(n), ac)
	return ac[:len(x)]
}

// TrackBeats places beats on an onset envelope with dynamic programming:
// each frame's cumulative score is its smoothed onset strength plus the best
// score of a predecessor between half and twice the beat period earlier,
// penalized by the squared log ratio of the interval to the period. Beats are
// backtracked from the last confident peak of the cumulative score and weak
// beats at either end are trimmed. The result is strictly increasing and
// every frame is < len(env).
func TrackBeats(env []float64, fps, tempo float64) []int {
	if len(env) == 0 || fps <= 0 || tempo <= 0 {
		return nil
	}
	period := int(math.Round(60 * fps / tempo))
	if period < 1 {
		return nil
	}

	std := stat.StdDev(env, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}

	local := localScore(env, std, period)
	backlink, cumscore := beatDP(local, period)

	last := lastBeat(cumscore)
	beats := []int{last}
	for backlink[beats[len(beats)-1]] >= 0 {
		beats = append(beats, backlink[beats[len(beats)-1]])
	}
	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}

	return trimBeats(local, beats)
}

// localScore normalizes env by its standard deviation and smooths it with a
// Gaussian of width period/32.
func localScore(env []float64, std float64, period int) []float64 {
	kernel := make([]float64, 2*period+1)
	for k := range kernel {
		d := float64(k-period) * 32 / float64(period)
		kernel[k] = math.Exp(-0.5 * d * d)
	}

	out := make([]float64, len(env))
	for i := range out {
		var acc float64
		for k, w := range kernel {
			j := i + k - period
			if j < 0 || j >= len(env) {
				continue
			}
			acc += w * env[j] / std
		}
		out[i] = acc
	}
	return out
}

// beatDP computes the cumulative beat score and the best predecessor of every
// frame. A backlink of -1 marks a frame that starts a beat sequence.
func beatDP(local []float64, period int) ([]int, []float64) {
	minOff := max(1, int(math.Round(float64(period)/2)))
	maxOff := 2 * period

	// Transition penalty indexed by offset.
	txwt := make([]float64, maxOff+1)
	for off := minOff; off <= maxOff; off++ {
		l := math.Log(float64(off) / float64(period))
		txwt[off] = -beatTightness * l * l
	}

	backlink := make([]int, len(local))
	cumscore := make([]float64, len(local))
	threshold := 0.01 * floats.Max(local)

	first := true
	for i, score := range local {
		best, bestJ := math.Inf(-1), -1
		for off := maxOff; off >= minOff; off-- {
			j := i - off
			c := txwt[off]
			if j >= 0 {
				c += cumscore[j]
			}
			if c > best {
				best, bestJ = c, j
			}
		}

		cumscore[i] = score + best
		if first && score < threshold {
			backlink[i] = -1
		} else {
			backlink[i] = max(bestJ, -1)
			first = false
		}
	}
	return backlink, cumscore
}

// lastBeat returns the last local maximum of cumscore above half the median
// local-maximum score.
func lastBeat(cumscore []float64) int {
	var peaks []int
	for i, v := range cumscore {
		left := cumscore[max(i-1, 0)]
		right := cumscore[min(i+1, len(cumscore)-1)]
		if i > 0 && v > left && v >= right {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) == 0 {
		return len(cumscore) - 1
	}

	values := make([]float64, len(peaks))
	for i, p := range peaks {
		values[i] = cumscore[p]
	}
	sort.Float64s(values)
	median := values[len(values)/2]
	if len(values)%2 == 0 {
		median = (values[len(values)/2-1] + median) / 2
	}

	for i := len(peaks) - 1; i >= 0; i-- {
		if 2*cumscore[peaks[i]] > median {
			return peaks[i]
		}
	}
	return peaks[len(peaks)-1]
}

// trimBeats drops leading and trailing beats whose smoothed onset strength is
// below half the RMS of the beat strengths.
func trimBeats(local []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}

	strength := make([]float64, len(beats))
	for i, b := range beats {
		strength[i] = local[b]
	}

	ones := []float64{1, 1, 1, 1, 1}
	hann := window.Hann(ones)
	smooth := make([]float64, len(strength))
	for i := range smooth {
		for k, w := range hann {
			j := i + k - len(hann)/2
			if j >= 0 && j < len(strength) {
				smooth[i] += w * strength[j]
			}
		}
	}

	threshold := 0.5 * math.Sqrt(floats.Dot(smooth, smooth)/float64(len(smooth)))

	lo, hi := -1, -1
	for i, v := range smooth {
		if v > threshold {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return nil
	}
	return beats[lo : hi+1]
}
