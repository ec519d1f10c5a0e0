// Package vectormath provides the pure numeric primitives shared by the
// index and the context builder: vector normalization, cosine similarity,
// deterministic content hashing, and stable unit identity derivation.
package vectormath

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/repoctx/repoctx/pkg/types"
)

// Normalize scales v to unit length. The zero vector is returned unchanged:
// empty content produces a zero embedding in degenerate cases and search must
// stay robust against it, so no error is raised here. CosineSimilarity
// yields 0.0 for the same inputs, keeping build-time and search-time
// behavior consistent.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

// CosineSimilarity computes the cosine of the angle between a and b,
// in [-1, 1]. Vectors of different lengths indicate stored embeddings from
// a different provider or model and return a DimensionMismatchError.
// A zero-magnitude operand yields the sentinel 0.0, never a division error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &types.DimensionMismatchError{Expected: len(a), Actual: len(b)}
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// HashContent computes the SHA-256 hex digest of text. Any byte difference,
// whitespace included, changes the digest.
func HashContent(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// DeriveUnitID derives the stable identity of an embeddable unit from its
// kind, repo-relative source path, and optional symbol name. The result is
// a pure function of its inputs: re-indexing a unit whose location and name
// are unchanged always yields the same ID. symbolName is empty for
// kind=file.
func DeriveUnitID(kind types.UnitKind, sourcePath, symbolName string) string {
	if symbolName == "" {
		return string(kind) + ":" + sourcePath
	}
	return string(kind) + ":" + sourcePath + ":" + symbolName
}

// SerializeVector converts a float32 slice to a byte blob (little-endian)
func SerializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// DeserializeVector converts a byte blob back to a float32 slice
func DeserializeVector(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
