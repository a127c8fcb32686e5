package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// WAV format tags.
const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// decodeWAV decodes an integer PCM or 32-bit IEEE float WAV file, scaling
// samples to [-1, 1].
func decodeWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	format, err := wavSampleFormat(f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind wav: %w", err)
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav file", ErrUnsupportedFormat)
	}

	numChans := int(d.NumChans)
	if numChans <= 0 {
		return nil, fmt.Errorf("%w: wav has %d channels", ErrUnsupportedFormat, numChans)
	}

	bitDepth := int(d.BitDepth)
	var sample func(v int) float32
	switch format {
	case wavFormatPCM:
		if bitDepth <= 0 || bitDepth > 32 {
			return nil, fmt.Errorf("%w: wav bit depth %d", ErrUnsupportedFormat, bitDepth)
		}
		scale := float32(int64(1) << (bitDepth - 1))
		// 8-bit WAV samples are unsigned.
		var offset int
		if bitDepth == 8 {
			offset = 128
		}
		sample = func(v int) float32 { return float32(v-offset) / scale }
	case wavFormatFloat:
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: float wav bit depth %d", ErrUnsupportedFormat, bitDepth)
		}
		// The decoder returns the raw IEEE 754 words as signed ints.
		sample = func(v int) float32 { return math.Float32frombits(uint32(v)) }
	default:
		return nil, fmt.Errorf("%w: wav audio format %d", ErrUnsupportedFormat, format)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav pcm: %w", err)
	}

	frames := len(pcm.Data) / numChans
	channels := make([][]float32, numChans)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range numChans {
			channels[c][i] = clamp(sample(pcm.Data[i*numChans+c]))
		}
	}

	return NewBuffer(channels, int(d.SampleRate))
}

// wavSampleFormat returns the sample format tag from the fmt chunk. For
// WAVE_FORMAT_EXTENSIBLE it returns the tag embedded in the SubFormat GUID,
// which wav.Decoder discards.
func wavSampleFormat(r io.Reader) (uint16, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if p.Format != riff.WavFormatID {
		return 0, fmt.Errorf("%w: riff format %q", ErrUnsupportedFormat, p.Format[:])
	}

	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("%w: no fmt chunk: %w", ErrUnsupportedFormat, err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}

		if ch.Size < 16 || ch.Size > 1<<16 {
			return 0, fmt.Errorf("%w: fmt chunk size %d", ErrUnsupportedFormat, ch.Size)
		}
		body := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, body); err != nil {
			return 0, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
		}
		tag := binary.LittleEndian.Uint16(body)
		// cbSize, wValidBitsPerSample and dwChannelMask precede the GUID.
		if tag == wavFormatExtensible && len(body) >= 26 {
			tag = binary.LittleEndian.Uint16(body[24:26])
		}
		return tag, nil
	}
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
