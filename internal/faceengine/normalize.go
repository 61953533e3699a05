package faceengine

import "math"

// normalize L2-normalizes vec in place conceptually, returning a new
// slice, or nil if its norm is <= 0 (spec §4.C: "skip if norm <= 0").
func normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm <= 0 {
		return nil
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// padOrTruncate returns vec resized to exactly n elements: zero-padded
// if shorter, truncated if longer (spec §4.C, §4.D).
func padOrTruncate(vec []float32, n int) []float32 {
	if len(vec) == n {
		return vec
	}
	out := make([]float32, n)
	copy(out, vec)
	return out
}
