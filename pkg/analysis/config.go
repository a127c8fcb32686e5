package analysis

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nzoschke/audioreact/pkg/audio"
)

// ErrInvalidArgument is returned for invalid configuration or input.
var ErrInvalidArgument = audio.ErrInvalidArgument

// ErrEmptyAudio is returned when there are no samples to analyze.
var ErrEmptyAudio = fmt.Errorf("%w: empty audio", ErrInvalidArgument)

// Band is a named half-open frequency range [MinHz, MaxHz).
type Band struct {
	Name  string  `yaml:"name" json:"name"`
	MinHz float64 `yaml:"min_hz" json:"min_hz"`
	MaxHz float64 `yaml:"max_hz" json:"max_hz"`
}

// BandScale selects how band curves are normalized.
type BandScale string

const (
	// BandScaleShared divides every band by the global energy curve's
	// 99th percentile. It is the default. Unlike per-band normalization,
	// band levels keep their relative loudness: a bass-heavy track reports
	// bass well above mid, where BandScaleIndependent scales both near 1.
	BandScaleShared BandScale = "shared"
	// BandScaleIndependent divides each band by its own 99th percentile.
	BandScaleIndependent BandScale = "independent"
)

// Config holds the analysis parameters.
type Config struct {
	SampleRate int                 `yaml:"sample_rate" json:"sample_rate"`
	FFTSize    int                 `yaml:"fft_size" json:"fft_size"`
	HopSize    int                 `yaml:"hop_size" json:"hop_size"`
	Bands      []Band              `yaml:"bands" json:"bands"`
	TrackBeats bool                `yaml:"track_beats" json:"track_beats"`
	Mono       audio.ChannelPolicy `yaml:"mono" json:"mono"`
	Normalize  bool                `yaml:"normalize" json:"normalize"`
	TargetPeak float64             `yaml:"target_peak" json:"target_peak"`
	BandScale  BandScale           `yaml:"band_scale" json:"band_scale"`
}

// DefaultBands are the bass, mid and treble ranges.
func DefaultBands() []Band {
	return []Band{
		{Name: "bass", MinHz: 20, MaxHz: 250},
		{Name: "mid", MinHz: 250, MaxHz: 4000},
		{Name: "treble", MinHz: 4000, MaxHz: 20000},
	}
}

// DefaultConfig returns the default analysis parameters.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		FFTSize:    2048,
		HopSize:    512,
		Bands:      DefaultBands(),
		TrackBeats: true,
		Mono:       audio.ChannelMix,
		Normalize:  true,
		TargetPeak: audio.DefaultPeak,
		BandScale:  BandScaleShared,
	}
}

// Validate checks every parameter and returns an ErrInvalidArgument on the first problem.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate %d", ErrInvalidArgument, c.SampleRate)
	}
	if c.FFTSize <= 0 {
		return fmt.Errorf("%w: fft_size %d", ErrInvalidArgument, c.FFTSize)
	}
	if c.HopSize <= 0 {
		return fmt.Errorf("%w: hop_size %d", ErrInvalidArgument, c.HopSize)
	}
	if !c.Mono.Valid() {
		return fmt.Errorf("%w: mono policy %d", ErrInvalidArgument, int(c.Mono))
	}
	if c.Normalize && (c.TargetPeak <= 0 || math.IsNaN(c.TargetPeak) || math.IsInf(c.TargetPeak, 0)) {
		return fmt.Errorf("%w: target_peak %v", ErrInvalidArgument, c.TargetPeak)
	}
	switch c.BandScale {
	case BandScaleShared, BandScaleIndependent:
	default:
		return fmt.Errorf("%w: band_scale %q", ErrInvalidArgument, c.BandScale)
	}

	seen := make(map[string]bool, len(c.Bands))
	for i, b := range c.Bands {
		if b.Name == "" {
			return fmt.Errorf("%w: band %d has no name", ErrInvalidArgument, i)
		}
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate band %q", ErrInvalidArgument, b.Name)
		}
		seen[b.Name] = true
		if !finite(b.MinHz) || !finite(b.MaxHz) || b.MinHz < 0 || b.MinHz >= b.MaxHz {
			return fmt.Errorf("%w: band %q range [%v, %v)", ErrInvalidArgument, b.Name, b.MinHz, b.MaxHz)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// preset is the on-disk preset document; only its audio section is read.
type preset struct {
	Name  string    `yaml:"name"`
	Audio yaml.Node `yaml:"audio"`
}

// LoadConfig reads the audio section of a YAML or JSON preset file on top of
// DefaultConfig. Keys missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read preset: %w", err)
	}

	var p preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return cfg, fmt.Errorf("%w: parse preset %s: %w", ErrInvalidArgument, path, err)
	}

	if !p.Audio.IsZero() {
		if err := p.Audio.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%w: preset audio section: %w", ErrInvalidArgument, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
