package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a vector as little-endian float32 bytes for BLOB storage.
func EncodeVector(v []float32) []byte {
	const size = 4
	out := make([]byte, len(v)*size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(f))
	}
	return out
}

// DecodeVector deserializes a BLOB into a vector of the expected dimension.
// Returns an error if the byte length does not match dimensions*4.
func DecodeVector(b []byte, dimensions int) ([]float32, error) {
	const size = 4
	if len(b) != dimensions*size {
		return nil, fmt.Errorf("embedding blob is %d bytes, expected %d for %d dimensions", len(b), dimensions*size, dimensions)
	}
	out := make([]float32, dimensions)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out, nil
}
