package analysis

import (
	"context"
	"math"
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/audioreact/pkg/probe"
)

type stubProber struct {
	info probe.StreamInfo
	err  error
}

func (s stubProber) Probe(context.Context, string) (probe.StreamInfo, error) {
	return s.info, s.err
}

// tones sums sines of the given frequencies and amplitudes.
func tones(sampleRate int, seconds float64, freqs, amps []float64) []float32 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		var v float64
		for j, f := range freqs {
			v += amps[j] * math.Sin(2*math.Pi*f*t)
		}
		out[i] = float32(v)
	}
	return out
}

// clicks returns a signal with 200-sample unit pulses starting at each time.
func clicks(sampleRate int, seconds float64, at []float64) []float32 {
	out := make([]float32, int(float64(sampleRate)*seconds))
	for _, t := range at {
		start := int(t * float64(sampleRate))
		for i := start; i < start+200 && i < len(out); i++ {
			out[i] = 1
		}
	}
	return out
}

// every returns times from start, spaced by step, before end.
func every(start, step, end float64) []float64 {
	var out []float64
	for t := start; t < end-1e-9; t += step {
		out = append(out, t)
	}
	return out
}

func writeWAV(t *testing.T, path string, sampleRate int, channels ...[]float32) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	numChans := len(channels)
	data := make([]int, 0, len(channels[0])*numChans)
	for i := range channels[0] {
		for c := range numChans {
			data = append(data, int(channels[c][i]*32767))
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, numChans, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: numChans, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}
