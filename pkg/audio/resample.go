package audio

import (
	"fmt"
	"math"
)

// Zero crossings of the sinc kernel on each side of the output sample.
const sincZeroCrossings = 16

// Largest polyphase table kept in memory; beyond it weights are computed per sample.
const maxPolyphasePhases = 4096

// Resample applies policy to buf and converts it to targetRate with a
// band-limited windowed-sinc interpolator. When the rates already match the
// mixed samples are returned unchanged. Output length is ceil(n*target/source).
func Resample(buf *Buffer, targetRate int, policy ChannelPolicy) (*Buffer, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("%w: target sample rate %d", ErrInvalidArgument, targetRate)
	}

	mixed, err := MixChannels(buf, policy)
	if err != nil {
		return nil, err
	}
	if mixed.SampleRate == targetRate {
		return mixed, nil
	}

	r := newSincResampler(mixed.SampleRate, targetRate)
	out := make([][]float32, len(mixed.Channels))
	for c, ch := range mixed.Channels {
		out[c] = r.resample(ch)
	}
	return &Buffer{Channels: out, SampleRate: targetRate}, nil
}

// sincResampler holds a Hann-windowed sinc kernel for one rate pair.
// Output sample j sits at source position j*src/dst; since both rates are
// integers the fractional part takes at most dst/gcd distinct values, so the
// kernel weights for each phase are computed once.
type sincResampler struct {
	src, dst  int64
	step      int64 // gcd(src, dst)
	cutoff    float64
	halfTaps  int
	halfWidth float64
	phases    [][]float64
}

func newSincResampler(srcRate, dstRate int) *sincResampler {
	r := &sincResampler{
		src:    int64(srcRate),
		dst:    int64(dstRate),
		step:   gcd(int64(srcRate), int64(dstRate)),
		cutoff: 1,
	}
	// Lower the cutoff below the new Nyquist when downsampling.
	if dstRate < srcRate {
		r.cutoff = float64(dstRate) / float64(srcRate)
	}
	r.halfTaps = int(math.Ceil(sincZeroCrossings / r.cutoff))
	r.halfWidth = float64(r.halfTaps)

	if n := r.dst / r.step; n <= maxPolyphasePhases {
		r.phases = make([][]float64, n)
		for p := range r.phases {
			frac := float64(int64(p)*r.step) / float64(r.dst)
			r.phases[p] = r.weights(frac)
		}
	}
	return r
}

// weights returns the kernel taps for source offsets -halfTaps+1..halfTaps
// around the integer position preceding a fractional offset frac.
func (r *sincResampler) weights(frac float64) []float64 {
	w := make([]float64, 2*r.halfTaps)
	for k := range w {
		d := frac - float64(k-r.halfTaps+1)
		w[k] = r.kernel(d)
	}
	return w
}

func (r *sincResampler) kernel(d float64) float64 {
	u := d / r.halfWidth
	if u <= -1 || u >= 1 {
		return 0
	}
	window := 0.5 + 0.5*math.Cos(math.Pi*u)
	return r.cutoff * sinc(r.cutoff*d) * window
}

func (r *sincResampler) resample(samples []float32) []float32 {
	n := int64(len(samples))
	outLen := (n*r.dst + r.src - 1) / r.src
	out := make([]float32, outLen)

	for j := range outLen {
		pos := j * r.src
		base := pos / r.dst
		rem := pos % r.dst

		var w []float64
		if r.phases != nil {
			w = r.phases[rem/r.step]
		} else {
			w = r.weights(float64(rem) / float64(r.dst))
		}

		var acc float64
		start := base - int64(r.halfTaps) + 1
		for k, weight := range w {
			i := start + int64(k)
			if i < 0 || i >= n {
				continue
			}
			acc += float64(samples[i]) * weight
		}
		out[j] = float32(acc)
	}
	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
