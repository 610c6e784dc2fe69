package frametime

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation as a
	// fraction of mean FPS. 60 FPS mean → stable if stddev < 9 FPS.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a fraction
	// of the mean interval. 16.7ms → stable if jitter < 3.3ms.
	jitterStabilityThreshold = 0.20
)

// IntervalStats describes how regular the observed display ticks are.
type IntervalStats struct {
	// Samples is the number of intervals considered.
	Samples int
	// MeanInterval is the average time between ticks.
	MeanInterval time.Duration
	// FPSMean is Samples divided by the summed interval time.
	FPSMean float64
	// FPSStdDev is the standard deviation of per-interval FPS.
	FPSStdDev float64
	// FPSMin is the lowest per-interval FPS.
	FPSMin float64
	// FPSMax is the highest per-interval FPS.
	FPSMax float64
	// JitterMean is the mean absolute deviation from MeanInterval, in seconds.
	JitterMean float64
	// JitterStdDev is the standard deviation of the jitter, in seconds.
	JitterStdDev float64
	// JitterMax is the largest deviation from MeanInterval, in seconds.
	JitterMax float64
	// IsStable is true if FPS stddev < 15% of mean AND jitter < 20% of the interval.
	IsStable bool
}

// CalculateIntervalStats calculates tick statistics from consecutive intervals.
//
// Computes:
//  1. Mean interval and mean FPS
//  2. Per-interval FPS, its min/max and standard deviation
//  3. Jitter (absolute deviation from the mean interval)
//  4. Stability (FPS stddev < 15% of mean AND jitter < 20% of interval)
func CalculateIntervalStats(intervals []time.Duration) *IntervalStats {
	valid := make([]float64, 0, len(intervals))
	for _, d := range intervals {
		if d > 0 {
			valid = append(valid, d.Seconds())
		}
	}

	n := len(valid)
	if n == 0 {
		return &IntervalStats{}
	}

	var total float64
	for _, s := range valid {
		total += s
	}

	meanInterval := total / float64(n)
	fpsMean := float64(n) / total

	fpsMin := 1.0 / valid[0]
	fpsMax := fpsMin
	var sumSquares float64
	for _, s := range valid {
		fps := 1.0 / s
		if fps < fpsMin {
			fpsMin = fps
		}
		if fps > fpsMax {
			fpsMax = fps
		}
		diff := fps - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(n))

	var jitterSum, jitterMax float64
	jitters := make([]float64, n)
	for i, s := range valid {
		j := math.Abs(s - meanInterval)
		jitters[i] = j
		jitterSum += j
		if j > jitterMax {
			jitterMax = j
		}
	}
	jitterMean := jitterSum / float64(n)

	var jitterSumSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSumSquares += diff * diff
	}
	jitterStdDev := math.Sqrt(jitterSumSquares / float64(n))

	fpsStable := fpsStdDev < fpsMean*fpsStabilityThreshold
	jitterStable := jitterMean < meanInterval*jitterStabilityThreshold

	return &IntervalStats{
		Samples:      n,
		MeanInterval: time.Duration(meanInterval * float64(time.Second)),
		FPSMean:      fpsMean,
		FPSStdDev:    fpsStdDev,
		FPSMin:       fpsMin,
		FPSMax:       fpsMax,
		JitterMean:   jitterMean,
		JitterStdDev: jitterStdDev,
		JitterMax:    jitterMax,
		IsStable:     fpsStable && jitterStable,
	}
}
