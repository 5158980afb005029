package facematch

// initialBestDistance seeds the scan; candidates must beat it to be considered at all.
const initialBestDistance = 1.0

// Match runs a linear nearest-neighbour scan over candidates.
// The closest candidate wins (first one on ties) and counts as a match when its
// distance is within threshold.
func Match(descriptor []float32, candidates []Candidate, threshold float64) Result {
	best := -1
	bestDistance := initialBestDistance

	for i := range candidates {
		d := Distance(descriptor, candidates[i].Descriptor)
		if d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	if best < 0 {
		return unmatched(bestDistance)
	}
	return Classify(candidates[best], bestDistance, threshold)
}

// Classify turns a nearest candidate and its distance into a Result.
// Used by index-backed searches that already found the nearest neighbour.
func Classify(c Candidate, distance, threshold float64) Result {
	if distance > threshold {
		return unmatched(distance)
	}

	status := StatusKnown
	if c.Wanted {
		status = StatusWanted
	}
	return Result{
		Matched:    true,
		ID:         c.ID,
		Name:       c.Name,
		Wanted:     c.Wanted,
		Distance:   distance,
		Confidence: Confidence(distance),
		Status:     status,
	}
}

// Confidence maps a distance to a score in [0, 1].
func Confidence(distance float64) float64 {
	return max(0, 1-distance)
}

func unmatched(distance float64) Result {
	return Result{
		Name:       UnknownName,
		Distance:   distance,
		Confidence: Confidence(distance),
		Status:     StatusUnknown,
	}
}
