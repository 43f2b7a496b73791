// Package similarity scores how close two texts are in embedding space.
package similarity

import (
	"fmt"
	"math"

	"cvmatch/internal/errors"
)

// minNorm is the smallest vector norm treated as non-zero
const minNorm = 1e-12

// Cosine returns dot(a, b) / (|a| * |b|) clamped to [-1, 1].
// Empty vectors, vectors of different dimension and zero vectors have no
// defined similarity and return a SIMILARITY_UNDEFINED error instead of a score.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errors.NewUndefinedSimilarityError("embedding is empty")
	}
	if len(a) != len(b) {
		return 0, errors.NewUndefinedSimilarityError(
			fmt.Sprintf("embedding dimensions differ: %d and %d", len(a), len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	normA, normB = math.Sqrt(normA), math.Sqrt(normB)
	if normA < minNorm || normB < minNorm {
		return 0, errors.NewUndefinedSimilarityError("embedding has zero norm")
	}

	score := dot / (normA * normB)
	if math.IsNaN(score) {
		return 0, errors.NewUndefinedSimilarityError("embedding contains non-finite values")
	}
	return math.Max(-1, math.Min(1, score)), nil
}
