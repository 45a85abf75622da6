package wav

import (
	"math"

	"github.com/book-expert/musicgen-service/internal/core"
)

// Number of sinc lobes kept on each side of the interpolation point.
const filterTaps = 16

// Resample converts a mono 16-bit PCM WAV to the target sample rate using a
// Hann-windowed sinc filter. The output sample count is
// round(len(samples) * target/source) and samples are re-quantized to int16.
//
// Failure policy: any parse or processing problem returns the input bytes
// unchanged. Synthesis success must never be blocked by a resampling defect,
// so callers must not assume the returned rate matches the requested one.
func Resample(data []byte, targetRate int) []byte {
	if targetRate <= 0 {
		return data
	}

	clip, err := Decode(data)
	if err != nil {
		return data
	}

	if clip.SampleRate == targetRate || len(clip.Samples) == 0 {
		return data
	}

	resampled := core.Clip{
		SampleRate: targetRate,
		Samples:    sincResample(clip.Samples, clip.SampleRate, targetRate),
	}

	return Encode(resampled)
}

// sincResample performs band-limited interpolation of src from srcRate to
// dstRate. When downsampling, the filter cutoff is scaled down to the target
// Nyquist frequency to avoid aliasing.
func sincResample(src []int16, srcRate, dstRate int) []int16 {
	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(math.Round(float64(len(src)) * ratio))
	out := make([]int16, outLen)

	cutoff := 1.0
	if ratio < 1.0 {
		cutoff = ratio
	}

	for i := range out {
		center := float64(i) / ratio

		var sum, weight float64

		first := int(math.Floor(center)) - filterTaps + 1
		last := int(math.Floor(center)) + filterTaps

		for j := first; j <= last; j++ {
			if j < 0 || j >= len(src) {
				continue
			}

			x := center - float64(j)
			w := windowedSinc(x, cutoff)
			sum += float64(src[j]) * w
			weight += w
		}

		if weight != 0 {
			sum /= weight
		}

		out[i] = clampInt16(sum)
	}

	return out
}

func windowedSinc(x, cutoff float64) float64 {
	if x == 0 {
		return cutoff
	}

	arg := math.Pi * x
	sinc := math.Sin(cutoff*arg) / arg

	// Hann window over the filter span.
	window := 0.5 * (1 + math.Cos(arg/filterTaps))

	return sinc * window
}

func clampInt16(v float64) int16 {
	rounded := math.Round(v)
	if rounded > math.MaxInt16 {
		return math.MaxInt16
	}

	if rounded < math.MinInt16 {
		return math.MinInt16
	}

	return int16(rounded)
}
