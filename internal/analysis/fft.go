package analysis

import (
	"math"
	"math/cmplx"
)

// FFT is a radix-2 transform; len(data) must be a power of two.
func FFT(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}

	if n%2 != 0 {
		panic("fft requires power of 2 length")
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)

	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := FFT(even)
	fodd := FFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}

	return result
}

// PowerSpectrum returns the magnitude of the first half of the FFT.
func PowerSpectrum(data []float64) []float64 {
	fft := FFT(data)
	ps := make([]float64, len(fft)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(fft[i])
	}

	return ps
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC
// component of signal sampled every dt, and its magnitude. Only the last
// power-of-two samples are used, after removing their mean. It returns zeros
// when fewer than 4 samples are available.
func DominantFrequency(signal []float64, dt float64) (freq, magnitude float64) {
	n := 1
	for n*2 <= len(signal) {
		n *= 2
	}
	if n < 4 || dt <= 0 {
		return 0, 0
	}

	window := make([]float64, n)
	copy(window, signal[len(signal)-n:])
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(n)
	for i := range window {
		window[i] -= mean
	}

	ps := PowerSpectrum(window)
	best := 0
	for k := 1; k < len(ps); k++ {
		if ps[k] > ps[best] || best == 0 {
			best = k
		}
	}
	return float64(best) / (float64(n) * dt), ps[best]
}
