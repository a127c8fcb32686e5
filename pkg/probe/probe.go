// Package probe reads container and stream metadata for audio files.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrToolUnavailable is returned when the ffprobe binary cannot be found or fails to run.
	ErrToolUnavailable = errors.New("probe tool unavailable")
	// ErrMalformedOutput is returned when the probe output is not a JSON document.
	ErrMalformedOutput = errors.New("malformed probe output")
)

// StreamInfo describes the first audio stream of a file. Zero values mean unknown.
type StreamInfo struct {
	Codec         string  `json:"codec"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	ChannelLayout string  `json:"channel_layout,omitempty"`
	Duration      float64 `json:"duration"`
	FormatName    string  `json:"format_name,omitempty"`
}

// Prober reads stream metadata for a file.
type Prober interface {
	Probe(ctx context.Context, path string) (StreamInfo, error)
}

// FFProbe probes files by running ffprobe as a subprocess.
type FFProbe struct {
	// Bin is an explicit path to the ffprobe binary. When empty, a bundled
	// ffmpeg/ffprobe next to the executable is tried, then $PATH.
	Bin string
	// Timeout bounds a single probe when non-zero.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Probe runs ffprobe on path and parses its JSON output.
func (p *FFProbe) Probe(ctx context.Context, path string) (StreamInfo, error) {
	bin, err := p.binary()
	if err != nil {
		return StreamInfo{}, err
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if stderr == "" {
				stderr = exitErr.Error()
			}
			return StreamInfo{}, fmt.Errorf("%w: ffprobe %s: %s", ErrToolUnavailable, filepath.Base(path), stderr)
		}
		return StreamInfo{}, fmt.Errorf("%w: %w", ErrToolUnavailable, err)
	}

	info, err := Parse(output)
	if err != nil {
		return StreamInfo{}, err
	}

	p.logger().Debug("probed stream",
		"path", path,
		"codec", info.Codec,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
	)
	return info, nil
}

func (p *FFProbe) binary() (string, error) {
	if p.Bin != "" {
		if _, err := os.Stat(p.Bin); err != nil {
			return "", fmt.Errorf("%w: %w", ErrToolUnavailable, err)
		}
		return p.Bin, nil
	}

	for _, candidate := range bundledCandidates() {
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}

	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return "", fmt.Errorf("%w: ffprobe not found in PATH", ErrToolUnavailable)
	}
	return bin, nil
}

// bundledCandidates lists ffprobe locations shipped alongside the binary or working directory.
func bundledCandidates() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}

	var out []string
	for _, dir := range dirs {
		out = append(out,
			filepath.Join(dir, "ffmpeg", "ffprobe"),
			filepath.Join(dir, "ffmpeg", "ffprobe.exe"),
		)
	}
	return out
}

func (p *FFProbe) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default().With("component", "probe")
}

// ffprobe JSON document, only the fields we read.
type ffprobeOut struct {
	Streams []struct {
		CodecType     string `json:"codec_type"`
		CodecName     string `json:"codec_name"`
		SampleRate    number `json:"sample_rate"`
		Channels      number `json:"channels"`
		ChannelLayout string `json:"channel_layout"`
	} `json:"streams"`
	Format struct {
		Duration   number `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// number accepts JSON numbers and numeric strings. Anything else decodes to 0.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	*n = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	*n = number(v)
	return nil
}

// Parse extracts StreamInfo from ffprobe JSON output. The first stream with
// codec_type "audio" is used; a document without one yields zero stream fields.
func Parse(data []byte) (StreamInfo, error) {
	var out ffprobeOut
	if err := json.Unmarshal(data, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	info := StreamInfo{
		Duration:   float64(out.Format.Duration),
		FormatName: out.Format.FormatName,
	}

	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.Codec = s.CodecName
		info.SampleRate = int(s.SampleRate)
		info.Channels = int(s.Channels)
		info.ChannelLayout = s.ChannelLayout
		break
	}

	return info, nil
}
