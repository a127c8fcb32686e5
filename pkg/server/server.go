// Package server provides the Echo web server for inspecting analysis results.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nzoschke/audioreact/pkg/analysis"
	"github.com/nzoschke/audioreact/pkg/audio"
	"github.com/nzoschke/audioreact/pkg/probe"
)

// Track represents an audio file under the server root.
type Track struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Server serves track listings and per-file analysis summaries from Root.
type Server struct {
	Root   string
	Config analysis.Config
	Prober probe.Prober
	Logger *slog.Logger
}

// New returns a Server rooted at dir.
func New(dir string, cfg analysis.Config, p probe.Prober) *Server {
	return &Server{Root: dir, Config: cfg, Prober: p}
}

// Echo builds the router with middleware and routes.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := s.logger()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
				log.LogAttrs(context.Background(), slog.LevelWarn, "request", attrs...)
				return nil
			}
			log.LogAttrs(context.Background(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/api/tracks", s.listTracks)
	e.GET("/api/tracks/*", s.analyzeTrack)
	e.GET("/api/audio/*", s.serveAudio)

	return e
}

// Run starts the web server on addr.
func (s *Server) Run(addr string) error {
	s.logger().Info("listening", "addr", addr, "root", s.Root)
	return s.Echo().Start(addr)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default().With("component", "server")
}

// listTracks returns every supported audio file under the root.
func (s *Server) listTracks(c echo.Context) error {
	paths, err := analysis.FindAudio(s.Root)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	tracks := make([]Track, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		ext := filepath.Ext(path)
		tracks = append(tracks, Track{
			Name: strings.TrimSuffix(filepath.Base(path), ext),
			Path: filepath.ToSlash(rel),
		})
	}

	return c.JSON(http.StatusOK, tracks)
}

// analyzeTrack runs the pipeline on one file and returns its summary, probe
// info and AAC passthrough decision. The optional channels query parameter
// sets the passthrough target channel count.
func (s *Server) analyzeTrack(c echo.Context) error {
	rel, fullPath, err := s.resolve(c.Param("*"))
	if err != nil {
		return err
	}

	channels := 0
	if q := c.QueryParam("channels"); q != "" {
		channels, err = strconv.Atoi(q)
		if err != nil || channels < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid channels")
		}
	}

	r, track, err := analysis.AnalyzeFile(c.Request().Context(), fullPath, s.Config, s.Prober)
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, analysis.ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sum := r.Summary()
	return c.JSON(http.StatusOK, analysis.FileSummary{
		Path:        rel,
		Info:        track.Info,
		Partial:     track.Partial,
		Passthrough: probe.CanPassthroughAAC(track.Info, s.Config.SampleRate, channels),
		Summary:     &sum,
	})
}

// serveAudio serves the raw audio file.
func (s *Server) serveAudio(c echo.Context) error {
	_, fullPath, err := s.resolve(c.Param("*"))
	if err != nil {
		return err
	}
	return c.File(fullPath)
}

// resolve URL-decodes a wildcard path and maps it to a supported audio file
// under the root.
func (s *Server) resolve(param string) (string, string, error) {
	decodedPath, err := url.PathUnescape(param)
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Security: prevent directory traversal
	if strings.Contains(decodedPath, "..") {
		return "", "", echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(s.Root, filepath.FromSlash(decodedPath))

	info, err := os.Stat(fullPath)
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return "", "", echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}
	if !audio.Supported(fullPath) {
		return "", "", echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
	}

	return decodedPath, fullPath, nil
}
