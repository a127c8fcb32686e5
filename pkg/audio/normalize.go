package audio

// DefaultPeak is the target peak amplitude used when none is configured.
const DefaultPeak = 0.98

const peakEpsilon = 1e-9

// Normalize scales buf so its maximum absolute sample equals peak.
// Silent input stays silent.
func Normalize(buf *Buffer, peak float64) *Buffer {
	gain := float32(peak / (float64(buf.Peak()) + peakEpsilon))

	out := make([][]float32, len(buf.Channels))
	for c, ch := range buf.Channels {
		scaled := make([]float32, len(ch))
		for i, v := range ch {
			scaled[i] = v * gain
		}
		out[c] = scaled
	}
	return &Buffer{Channels: out, SampleRate: buf.SampleRate}
}
