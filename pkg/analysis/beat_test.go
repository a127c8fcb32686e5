package analysis

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempoDetection(t *testing.T) {
	const sr = 44100
	samples := clicks(sr, 4, every(0, 0.5, 4))

	cfg := DefaultConfig()
	cfg.FFTSize = 1024
	cfg.HopSize = 256

	r, err := Analyze(samples, sr, cfg)
	require.NoError(t, err)

	t.Logf("tempo: %.2f BPM, beats: %v", r.Tempo, r.BeatTimes)
	assert.InDelta(t, 120, r.Tempo, 5)
}

func TestBeatsFollowClicks(t *testing.T) {
	const sr = 44100
	samples := clicks(sr, 8, every(0.3, 0.5, 8))

	cfg := DefaultConfig()
	cfg.FFTSize = 1024
	cfg.HopSize = 256

	r, err := Analyze(samples, sr, cfg)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(r.BeatFrames), 10)
	assertBeatInvariants(t, r)

	intervals := make([]float64, 0, len(r.BeatTimes)-1)
	for i := 1; i < len(r.BeatTimes); i++ {
		intervals = append(intervals, r.BeatTimes[i]-r.BeatTimes[i-1])
	}
	sort.Float64s(intervals)
	assert.InDelta(t, 0.5, intervals[len(intervals)/2], 0.03)
}

func TestTrackBeatsDisabled(t *testing.T) {
	const sr = 22050
	cfg := DefaultConfig()
	cfg.TrackBeats = false

	r, err := Analyze(clicks(sr, 3, every(0, 0.5, 3)), sr, cfg)
	require.NoError(t, err)
	assert.Zero(t, r.Tempo)
	assert.Empty(t, r.BeatFrames)
	assert.Empty(t, r.BeatTimes)
	assert.NotEmpty(t, r.OnsetFrames)
}

func TestEstimateTempoDegenerate(t *testing.T) {
	assert.Zero(t, EstimateTempo(nil, 86))
	assert.Zero(t, EstimateTempo([]float64{1, 2}, 86))
	assert.Zero(t, EstimateTempo(make([]float64, 1000), 86))
	assert.Zero(t, EstimateTempo([]float64{1, 0, 1, 0, 1}, 0))
}

func TestEstimateTempoPulseTrain(t *testing.T) {
	const fps = 100.0
	env := make([]float64, 1000)
	// 75 BPM is a pulse every 80 frames.
	for i := 10; i < len(env); i += 80 {
		env[i] = 1
		env[i+1] = 0.5
	}

	assert.InDelta(t, 75, EstimateTempo(env, fps), 2)
}

func TestTrackBeatsDegenerate(t *testing.T) {
	assert.Empty(t, TrackBeats(nil, 86, 120))
	assert.Empty(t, TrackBeats([]float64{1, 2, 3}, 86, 0))
	assert.Empty(t, TrackBeats(make([]float64, 100), 86, 120))
	assert.Empty(t, TrackBeats([]float64{1}, 86, 120))
}

func TestTrackBeatsPulseTrain(t *testing.T) {
	const fps = 100.0
	env := make([]float64, 1200)
	var want []int
	for i := 50; i < len(env); i += 50 {
		env[i] = 1
		want = append(want, i)
	}

	beats := TrackBeats(env, fps, 120)
	require.NotEmpty(t, beats)
	for i := 1; i < len(beats); i++ {
		require.Greater(t, beats[i], beats[i-1])
	}
	assert.Less(t, beats[len(beats)-1], len(env))

	for _, b := range beats {
		i := sort.SearchInts(want, b)
		near := false
		for _, j := range []int{i - 1, i} {
			if j >= 0 && j < len(want) && abs(want[j]-b) <= 2 {
				near = true
			}
		}
		assert.True(t, near, "beat %d is not on a pulse", b)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func assertBeatInvariants(t *testing.T, r *Result) {
	t.Helper()
	require.Len(t, r.BeatTimes, len(r.BeatFrames))
	for i, f := range r.BeatFrames {
		assert.GreaterOrEqual(t, f, 0)
		assert.Less(t, f, r.FrameCount())
		if i > 0 {
			assert.Greater(t, f, r.BeatFrames[i-1])
		}
	}
}
