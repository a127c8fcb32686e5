package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/mat"
)

// STFT computes the magnitude short-time Fourier transform of samples.
// The signal is zero padded by fftSize/2 on both sides so frame i is centred
// on sample i*hopSize. The result has fftSize/2+1 rows (bins) and
// 1+(n+2*(fftSize/2)-fftSize)/hopSize columns (frames). Magnitudes are unscaled.
func STFT(samples []float32, fftSize, hopSize int) (*mat.Dense, error) {
	if fftSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("%w: fft size %d, hop size %d", ErrInvalidArgument, fftSize, hopSize)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	pad := fftSize / 2
	padded := make([]float64, len(samples)+2*pad)
	for i, v := range samples {
		padded[pad+i] = float64(v)
	}

	numFrames := 1 + (len(padded)-fftSize)/hopSize
	numBins := fftSize/2 + 1

	win := periodicHann(fftSize)
	fft := fourier.NewFFT(fftSize)
	frame := make([]float64, fftSize)
	coeffs := make([]complex128, numBins)

	// Row-major bins x frames.
	data := make([]float64, numBins*numFrames)
	for i := range numFrames {
		start := i * hopSize
		for j := range frame {
			frame[j] = padded[start+j] * win[j]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			data[k*numFrames+i] = cmplx.Abs(c)
		}
	}

	return mat.NewDense(numBins, numFrames, data), nil
}

// periodicHann returns an n-point periodic Hann window, the first n points of
// the symmetric n+1 point window.
func periodicHann(n int) []float64 {
	w := make([]float64, n+1)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)[:n]
}

// FFTFrequencies returns the centre frequency in Hz of each bin.
func FFTFrequencies(sampleRate, fftSize int) []float64 {
	freqs := make([]float64, fftSize/2+1)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}
	return freqs
}

// FrameTimes returns the time in seconds of each frame centre.
func FrameTimes(numFrames, hopSize, sampleRate int) []float64 {
	times := make([]float64, numFrames)
	for i := range times {
		times[i] = float64(i*hopSize) / float64(sampleRate)
	}
	return times
}
