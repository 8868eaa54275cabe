package facestore

import "math"

// Distance computes the Euclidean distance between two encodings.
// Returns +Inf for encodings of different or zero length, so that a
// malformed probe can never match anything.
func Distance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}
