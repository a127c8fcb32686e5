package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// Extra samples go-mp3 emits before the first decoded frame compared to
// decoders that apply gapless trimming.
const goMP3DecoderDelay = 924

// Encoder delay assumed when the file carries no LAME header.
const defaultEncoderDelay = 576

// mp3Delay returns the number of leading samples to drop: the LAME encoder
// delay plus the go-mp3 decoder delay.
func mp3Delay(path string) int {
	return readLAMEEncoderDelay(path) + goMP3DecoderDelay
}

// readLAMEEncoderDelay reads the encoder delay from a LAME/Xing header if present.
func readLAMEEncoderDelay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return defaultEncoderDelay
	}
	defer f.Close()

	buf := make([]byte, 4096)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return defaultEncoderDelay
	}
	if n < 200 {
		return defaultEncoderDelay
	}
	buf = buf[:n]

	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	// 12 bits of delay followed by 12 bits of padding, 21 bytes after the tag.
	off := lameIdx + 21
	if off+3 > len(buf) {
		return defaultEncoderDelay
	}
	b := buf[off : off+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	if delay > 4096 {
		return defaultEncoderDelay
	}
	return delay
}

// decodeMP3 decodes an MP3 file into a two-channel buffer. go-mp3 always
// produces interleaved 16-bit stereo, mono sources included.
func decodeMP3(path string) (*Buffer, error) {
	delay := mp3Delay(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%w: mp3 decoder: %w", ErrUnsupportedFormat, err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	frames := len(pcm) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range frames {
		off := i * 4
		left[i] = float32(int16(binary.LittleEndian.Uint16(pcm[off:]))) / 32768
		right[i] = float32(int16(binary.LittleEndian.Uint16(pcm[off+2:]))) / 32768
	}

	if frames > delay {
		left = left[delay:]
		right = right[delay:]
	}

	return NewBuffer([][]float32{left, right}, decoder.SampleRate())
}

// foldIdentical collapses a buffer whose channels carry identical samples to
// a single channel. Other buffers are returned unchanged.
func foldIdentical(buf *Buffer) *Buffer {
	if buf.NumChannels() < 2 {
		return buf
	}
	first := buf.Channels[0]
	for _, ch := range buf.Channels[1:] {
		for i, v := range ch {
			if v != first[i] {
				return buf
			}
		}
	}
	return &Buffer{Channels: [][]float32{first}, SampleRate: buf.SampleRate}
}
