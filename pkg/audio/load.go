package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nzoschke/audioreact/pkg/probe"
)

// Track is a decoded file together with its stream metadata.
type Track struct {
	Path   string
	Buffer *Buffer
	Info   probe.StreamInfo
	// Partial is set when probing failed; Info then only carries the sample
	// rate and channel count of the decoded stream.
	Partial bool
}

// Supported reports whether the file extension has a decoder.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave", ".mp3", ".ogg", ".oga":
		return true
	default:
		return false
	}
}

// Decode reads path into a buffer at its native sample rate and channel count.
func Decode(path string) (*Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".wave":
		return decodeWAV(path)
	case ".mp3":
		return decodeMP3(path)
	case ".ogg", ".oga":
		return decodeOGG(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// Load decodes path and probes its stream metadata with p, or ffprobe when p
// is nil. Probe failures never fail the load; they produce a partial Track.
func Load(ctx context.Context, path string, p probe.Prober) (*Track, error) {
	log := slog.Default().With("component", "audio", "path", path)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := Decode(path)
	if err != nil {
		return nil, err
	}

	if p == nil {
		p = &probe.FFProbe{}
	}

	t := &Track{Path: path, Buffer: buf}
	info, err := p.Probe(ctx, path)
	if err != nil {
		log.Debug("probe failed, using decoded stream info", "error", err)
		t.Partial = true
		t.Info = probe.StreamInfo{
			SampleRate: buf.SampleRate,
			Channels:   buf.NumChannels(),
		}
		return t, nil
	}
	t.Info = info

	if info.Channels == 1 && buf.NumChannels() > 1 {
		t.Buffer = foldIdentical(buf)
	}

	log.Debug("loaded audio",
		"sample_rate", t.Buffer.SampleRate,
		"channels", t.Buffer.NumChannels(),
		"samples", t.Buffer.Len(),
		"codec", info.Codec,
	)
	return t, nil
}
