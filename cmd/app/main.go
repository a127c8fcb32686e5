// CLI for audio analysis diagnostics and the inspection server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nzoschke/audioreact/pkg/analysis"
	"github.com/nzoschke/audioreact/pkg/probe"
	"github.com/nzoschke/audioreact/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Audio analysis for reactive visuals",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze an audio file and print a summary line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runAnalyze(cmd, args[0], cfg)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Probe stream metadata and the AAC passthrough decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, _ := cmd.Flags().GetInt("rate")
		channels, _ := cmd.Flags().GetInt("channels")
		return runProbe(cmd, args[0], rate, channels)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Analyze every audio file in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		workers, _ := cmd.Flags().GetInt("workers")
		return runBatch(cmd, args[0], cfg, workers)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspection web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		dir, _ := cmd.Flags().GetString("dir")
		return server.New(dir, cfg, prober(cmd)).Run(addr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("preset", "p", "", "Preset file (YAML or JSON) with an audio section")
	rootCmd.PersistentFlags().String("ffprobe", "", "Path to the ffprobe binary")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	probeCmd.Flags().Int("rate", 44100, "Target sample rate for passthrough")
	probeCmd.Flags().Int("channels", 0, "Target channel count for passthrough (0 ignores channels)")
	batchCmd.Flags().IntP("workers", "w", 0, "Concurrent analyses (0 uses NumCPU-1)")
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("dir", "music", "Directory of audio files")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (analysis.Config, error) {
	path, _ := cmd.Flags().GetString("preset")
	if path == "" {
		return analysis.DefaultConfig(), nil
	}
	cfg, err := analysis.LoadConfig(path)
	if err != nil {
		return analysis.Config{}, fmt.Errorf("load preset: %w", err)
	}
	return cfg, nil
}

func prober(cmd *cobra.Command) *probe.FFProbe {
	bin, _ := cmd.Flags().GetString("ffprobe")
	return &probe.FFProbe{Bin: bin}
}

func runAnalyze(cmd *cobra.Command, path string, cfg analysis.Config) error {
	r, track, err := analysis.AnalyzeFile(cmd.Context(), path, cfg, prober(cmd))
	if err != nil {
		return err
	}
	if track.Partial {
		slog.Warn("stream metadata unavailable, using decoded format", "path", path)
	}

	fmt.Fprintln(cmd.OutOrStdout(), r.Summary().String())
	return nil
}

func runProbe(cmd *cobra.Command, path string, rate, channels int) error {
	info, err := prober(cmd).Probe(cmd.Context(), path)
	if err != nil {
		return err
	}

	out := struct {
		probe.StreamInfo
		Passthrough bool `json:"passthrough"`
	}{info, probe.CanPassthroughAAC(info, rate, channels)}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runBatch(cmd *cobra.Command, dir string, cfg analysis.Config, workers int) error {
	results, err := analysis.AnalyzeDir(cmd.Context(), dir, cfg, analysis.DirOptions{
		Workers:  workers,
		Prober:   prober(cmd),
		Progress: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	var failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %s\n", r.Path, r.Error)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Path, r.Summary.String())
	}
	slog.Info("batch complete", "files", len(results), "failed", failed)
	return nil
}
