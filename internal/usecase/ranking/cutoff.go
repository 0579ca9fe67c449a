// Package ranking trims raw nearest-neighbor lists at their natural
// relevance break.
package ranking

const (
	// qualityFloor is the worst acceptable distance for the best hit;
	// above it the whole result set is noise.
	qualityFloor = 0.50
	// gapMultiplier is the gap-to-baseline ratio that marks the end of
	// the relevant run.
	gapMultiplier = 2.5
	// maxDistance filters out hits that never count as relevant.
	maxDistance = 0.75
	// avgFloor keeps the baseline meaningful when the leading hits are
	// near-identical.
	avgFloor = 0.01
)

// Cutoff returns how many results to keep from an ascending list of
// cosine distances. It drops everything beyond the first gap that is
// disproportionate to the local baseline: the mean of the remaining gaps
// for the first position, the mean of the prior gaps after that. Zero
// means no result is worth returning.
func Cutoff(distances []float64) int {
	if len(distances) == 0 {
		return 0
	}
	if distances[0] > qualityFloor {
		return 0
	}

	survivors := make([]float64, 0, len(distances))
	for _, d := range distances {
		if d <= maxDistance {
			survivors = append(survivors, d)
		}
	}
	if len(survivors) == 0 {
		return 0
	}
	if len(survivors) == 1 {
		return 1
	}

	gaps := make([]float64, len(survivors)-1)
	for i := range gaps {
		gaps[i] = survivors[i+1] - survivors[i]
	}

	// With a single gap there is no baseline to compare against; the
	// best distance itself stands in.
	if len(gaps) == 1 {
		if gaps[0] > survivors[0] {
			return 1
		}
		return len(survivors)
	}

	for i := range gaps {
		var baseline float64
		if i == 0 {
			baseline = mean(gaps[1:])
		} else {
			baseline = mean(gaps[:i])
		}
		if baseline < avgFloor {
			baseline = avgFloor
		}
		if gaps[i]/baseline >= gapMultiplier {
			return i + 1
		}
	}

	return len(survivors)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
