// Package audio loads audio files into planar float32 buffers and prepares
// them for analysis: channel mixing, resampling and peak normalization.
package audio

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotFound is returned when the input file does not exist.
	ErrNotFound = errors.New("audio file not found")
	// ErrUnsupportedFormat is returned for containers or encodings no decoder handles.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrInvalidArgument is returned for malformed buffers and parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Buffer is planar audio: one slice per channel, all the same length.
// Buffers are not modified after construction; every stage returns a new one.
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

// NewBuffer validates and wraps channel data. It requires at least one
// channel, equal channel lengths, finite samples and a positive sample rate.
func NewBuffer(channels [][]float32, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidArgument, sampleRate)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidArgument)
	}

	n := len(channels[0])
	for c, ch := range channels {
		if len(ch) != n {
			return nil, fmt.Errorf("%w: channel %d has %d samples, want %d", ErrInvalidArgument, c, len(ch), n)
		}
		for i, v := range ch {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, fmt.Errorf("%w: non-finite sample at channel %d index %d", ErrInvalidArgument, c, i)
			}
		}
	}

	return &Buffer{Channels: channels, SampleRate: sampleRate}, nil
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Len()) / float64(b.SampleRate)
}

// Peak returns the maximum absolute sample value across all channels.
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, ch := range b.Channels {
		for _, v := range ch {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}
