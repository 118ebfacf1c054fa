package experiment

import "math"

// hashBucket maps an assignment key to a stable bucket in [0, 100).
// The hash is a deliberately simple 32-bit string fold: collisions are
// fine, what matters is that the same key always lands in the same
// bucket across processes and restarts.
func hashBucket(key string) int {
	var h int32
	for _, r := range key {
		h = (h << 5) - h + int32(r)
	}
	return bucketOf(h)
}

// bucketOf folds a signed 32-bit hash into [0, 100). The negation is
// done in 64 bits because -MinInt32 does not fit in 32.
func bucketOf(h int32) int {
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % 100)
}

// normalCDF approximates the standard normal cumulative distribution
// function using the Abramowitz-Stegun erf approximation (formula
// 7.1.26, max absolute error 1.5e-7).
func normalCDF(z float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if z < 0 {
		sign = -1.0
	}
	z = math.Abs(z) / math.Sqrt2

	t := 1.0 / (1.0 + p*z)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-z*z)

	return 0.5 * (1.0 + sign*y)
}

// minConfidenceSample is the sample size below which confidence is
// reported as zero rather than pretending the approximation means
// anything.
const minConfidenceSample = 30

// confidenceLevel converts a conversion rate and sample size into an
// approximate confidence percentage, capped at 99.9. The z statistic
// measures distance from a 50% null rate with a fixed 5% standard
// error scale; crude, but monotone in both rate distance and sample
// size, which is all the winner check needs.
func confidenceLevel(rate float64, sampleSize int) float64 {
	if sampleSize < minConfidenceSample {
		return 0
	}
	z := math.Sqrt(float64(sampleSize)) * (rate - 0.5) / 0.05
	return math.Min(normalCDF(math.Abs(z))*100, 99.9)
}

// safeRate returns num/den as a percentage, or 0 when den is 0.
func safeRate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
