package audio

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// decodeOGG decodes an Ogg Vorbis file into planar channels.
func decodeOGG(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ogg: %w", err)
	}
	defer f.Close()

	interleaved, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode ogg: %w", ErrUnsupportedFormat, err)
	}
	if format.Channels <= 0 {
		return nil, fmt.Errorf("%w: ogg has %d channels", ErrUnsupportedFormat, format.Channels)
	}

	numChans := format.Channels
	frames := len(interleaved) / numChans
	channels := make([][]float32, numChans)
	for c := range channels {
		ch := make([]float32, frames)
		for i := range ch {
			ch[i] = clamp(interleaved[i*numChans+c])
		}
		channels[c] = ch
	}

	return NewBuffer(channels, format.SampleRate)
}
