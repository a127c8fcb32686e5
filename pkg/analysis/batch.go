package analysis

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/nzoschke/audioreact/pkg/audio"
	"github.com/nzoschke/audioreact/pkg/probe"
)

// DirOptions controls AnalyzeDir.
type DirOptions struct {
	// Workers bounds concurrent analyses. Zero uses NumCPU-1, at least 2.
	Workers int
	Prober  probe.Prober
	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
}

// FileSummary is the outcome of analyzing one file in a directory.
type FileSummary struct {
	Path        string           `json:"path"`
	Info        probe.StreamInfo `json:"info"`
	Partial     bool             `json:"partial"`
	Passthrough bool             `json:"passthrough"`
	Summary     *Summary         `json:"summary,omitempty"`
	Error       string           `json:"error,omitempty"`
	Elapsed     time.Duration    `json:"elapsed"`
}

// FindAudio returns the supported audio files under dir, sorted by path.
func FindAudio(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audio.Supported(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// AnalyzeDir analyzes every supported audio file under dir concurrently.
// A failing file is reported in its FileSummary and does not stop the batch;
// only walking errors and context cancellation are returned.
func AnalyzeDir(ctx context.Context, dir string, cfg Config, opts DirOptions) ([]FileSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths, err := FindAudio(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return []FileSummary{}, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 2)
	}

	out := opts.Progress
	if out == nil {
		out = io.Discard
	}
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))
	bar := p.AddBar(int64(len(paths)),
		mpb.PrependDecorators(
			decor.Name("Analyzing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	results := make([]FileSummary, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				bar.Increment()
				return err
			}
			results[i] = analyzeOne(ctx, path, cfg, opts.Prober)
			// EwmaETA only learns from timed increments.
			bar.EwmaIncrement(results[i].Elapsed)
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		bar.Abort(false)
	}
	p.Wait()
	if err != nil {
		return nil, err
	}
	return results, nil
}

func analyzeOne(ctx context.Context, path string, cfg Config, p probe.Prober) FileSummary {
	sum := FileSummary{Path: path}

	start := time.Now()
	r, track, err := AnalyzeFile(ctx, path, cfg, p)
	sum.Elapsed = time.Since(start)
	if track != nil {
		sum.Info = track.Info
		sum.Partial = track.Partial
		sum.Passthrough = probe.CanPassthroughAAC(track.Info, cfg.SampleRate, 0)
	}
	if err != nil {
		sum.Error = err.Error()
		return sum
	}

	s := r.Summary()
	sum.Summary = &s
	return sum
}
