// Package vecmath provides the distance function shared by store
// backends that rank embeddings in process.
package vecmath

import "math"

// CosineDistance returns 1 - cosine similarity between two vectors.
// Mismatched lengths and zero vectors yield the maximum distance 1 so
// such rows rank last instead of erroring mid-query.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
