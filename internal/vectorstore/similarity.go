package vectorstore

import (
	"bytes"
	"encoding/binary"
	"math"
)

// InnerProduct returns the inner product of two vectors. For normalized
// vectors this equals cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

// Normalize returns a unit-length copy of v. Zero vectors are returned as-is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := 1.0 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = x * float32(norm)
	}
	return out
}

// encodeVector serializes a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// decodeVector deserializes a little-endian float32 blob.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, &v)
	return v
}
