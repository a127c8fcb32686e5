// Package analysis turns audio into time-aligned control signals: spectral
// magnitudes, energy curves per frequency band, onset events and beats.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/nzoschke/audioreact/pkg/audio"
	"github.com/nzoschke/audioreact/pkg/probe"
)

// Result holds every signal derived from one analysis run. All per-frame
// slices have FrameCount entries.
type Result struct {
	SampleRate int `json:"sample_rate"`
	HopSize    int `json:"hop_size"`
	FFTSize    int `json:"fft_size"`

	Times       []float64  `json:"times"`
	Frequencies []float64  `json:"frequencies"`
	Magnitudes  *mat.Dense `json:"-"` // bins x frames

	Energy []float64   `json:"energy"`
	Bands  []BandCurve `json:"bands"`

	OnsetEnvelope []float64 `json:"onset_envelope"`
	OnsetFrames   []int     `json:"onset_frames"`
	OnsetTimes    []float64 `json:"onset_times"`

	Tempo      float64   `json:"tempo"`
	BeatFrames []int     `json:"beat_frames"`
	BeatTimes  []float64 `json:"beat_times"`
}

// FrameCount returns the number of analysis frames.
func (r *Result) FrameCount() int {
	return len(r.Times)
}

// FramesPerSecond returns the analysis frame rate.
func (r *Result) FramesPerSecond() float64 {
	return float64(r.SampleRate) / float64(r.HopSize)
}

// Band returns the curve for the named band.
func (r *Result) Band(name string) (BandCurve, bool) {
	for _, b := range r.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return BandCurve{}, false
}

// BandMean is the mean normalized energy of one band.
type BandMean struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
}

// MeanBandEnergy returns the mean of every band curve, in band order.
func (r *Result) MeanBandEnergy() []BandMean {
	out := make([]BandMean, len(r.Bands))
	for i, b := range r.Bands {
		out[i] = BandMean{Name: b.Name, Mean: stat.Mean(b.Energy, nil)}
	}
	return out
}

// Summary is a compact description of a Result.
type Summary struct {
	SampleRate int        `json:"sample_rate"`
	HopSize    int        `json:"hop_size"`
	FFTSize    int        `json:"fft_size"`
	Frames     int        `json:"frames"`
	Duration   float64    `json:"duration"`
	Tempo      float64    `json:"tempo"`
	Beats      int        `json:"beats"`
	Onsets     int        `json:"onsets"`
	Bands      []BandMean `json:"bands"`
}

// Summary summarizes r.
func (r *Result) Summary() Summary {
	var duration float64
	if n := r.FrameCount(); n > 0 {
		duration = r.Times[n-1]
	}
	return Summary{
		SampleRate: r.SampleRate,
		HopSize:    r.HopSize,
		FFTSize:    r.FFTSize,
		Frames:     r.FrameCount(),
		Duration:   duration,
		Tempo:      r.Tempo,
		Beats:      len(r.BeatFrames),
		Onsets:     len(r.OnsetFrames),
		Bands:      r.MeanBandEnergy(),
	}
}

// String formats s as a single diagnostic line.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sr=%d hop=%d fft=%d frames=%d tempo=%.1f beats=%d onsets=%d",
		s.SampleRate, s.HopSize, s.FFTSize, s.Frames, s.Tempo, s.Beats, s.Onsets)
	for _, m := range s.Bands {
		fmt.Fprintf(&b, " %s=%.3f", m.Name, m.Mean)
	}
	return b.String()
}

// Analyze runs spectral, band, onset and beat analysis on mono samples at
// sampleRate. It returns ErrEmptyAudio for empty input.
func Analyze(samples []float32, sampleRate int, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidArgument, sampleRate)
	}

	mags, err := STFT(samples, cfg.FFTSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}
	_, frames := mags.Dims()

	r := &Result{
		SampleRate:  sampleRate,
		HopSize:     cfg.HopSize,
		FFTSize:     cfg.FFTSize,
		Times:       FrameTimes(frames, cfg.HopSize, sampleRate),
		Frequencies: FFTFrequencies(sampleRate, cfg.FFTSize),
		Magnitudes:  mags,
	}

	power := powerSpectrum(mags)
	r.Energy, r.Bands = energyCurves(power, r.Frequencies, cfg.Bands, cfg.BandScale)

	fps := r.FramesPerSecond()
	r.OnsetEnvelope = OnsetStrength(power)
	r.OnsetFrames = PickOnsets(r.OnsetEnvelope, fps)
	r.OnsetTimes = OnsetTimes(r.OnsetFrames, cfg.HopSize, sampleRate)

	if cfg.TrackBeats {
		r.Tempo = EstimateTempo(r.OnsetEnvelope, fps)
		r.BeatFrames = TrackBeats(r.OnsetEnvelope, fps, r.Tempo)
		r.BeatTimes = OnsetTimes(r.BeatFrames, cfg.HopSize, sampleRate)
	}

	return r, nil
}

// AnalyzeBuffer mixes buf to mono at cfg.SampleRate, peak normalizes it when
// configured and analyzes it. ChannelKeep mixes like ChannelMix since the
// spectral analysis is mono.
func AnalyzeBuffer(buf *audio.Buffer, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy := cfg.Mono
	if policy == audio.ChannelKeep {
		policy = audio.ChannelMix
	}
	mono, err := audio.Resample(buf, cfg.SampleRate, policy)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	if cfg.Normalize {
		mono = audio.Normalize(mono, cfg.TargetPeak)
	}

	return Analyze(mono.Channels[0], mono.SampleRate, cfg)
}

// AnalyzeFile loads path, probing it with p (ffprobe when nil), and analyzes it.
func AnalyzeFile(ctx context.Context, path string, cfg Config, p probe.Prober) (*Result, *audio.Track, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	track, err := audio.Load(ctx, path, p)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}

	r, err := AnalyzeBuffer(track.Buffer, cfg)
	if err != nil {
		return nil, track, fmt.Errorf("analyze %s: %w", path, err)
	}

	slog.Default().With("component", "analysis").Debug("analyzed",
		"path", path,
		"frames", r.FrameCount(),
		"tempo", r.Tempo,
		"beats", len(r.BeatFrames),
		"partial", track.Partial,
	)
	return r, track, nil
}
