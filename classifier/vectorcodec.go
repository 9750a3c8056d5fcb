package classifier

import (
	"encoding/binary"
	"fmt"
	"math"

	"fortio.org/safecast"
)

// EncodeVector serializes vec as a little-endian uint32 length followed by
// the float32 values.
func EncodeVector(vec []float32) ([]byte, error) {
	n, err := safecast.Conv[uint32](len(vec))
	if err != nil {
		return nil, fmt.Errorf("vector too long: %w", err)
	}
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], n)
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf, nil
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("vector blob too small: %d bytes", len(data))
	}
	length, err := safecast.Conv[int](binary.LittleEndian.Uint32(data[:4]))
	if err != nil {
		return nil, fmt.Errorf("vector length: %w", err)
	}
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("vector length mismatch: header %d, payload %d bytes", length, len(data))
	}
	vec := make([]float32, length)
	for i := range length {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
