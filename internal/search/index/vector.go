package index

import "math"

// Cosine computes cosine similarity between two vectors of equal length. A
// zero-norm operand scores -1 so it never outranks a real match.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrVectorLengthMismatch
	}
	return CosineNorms(a, b, Norm(a), Norm(b)), nil
}

// CosineNorms is Cosine for callers that already hold both L2 norms, such as
// a scan over an Index with precomputed row norms. a and b must be the same
// length.
func CosineNorms(a, b []float32, na, nb float64) float64 {
	den := na * nb
	if den == 0 {
		return -1
	}
	return Dot(a, b) / den
}

// Dot returns the inner product of two vectors of equal length.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}
