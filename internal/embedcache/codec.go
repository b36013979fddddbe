package embedcache

import (
	"encoding/binary"
	"fmt"
	"math"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
)

// codecVersion is the single byte tag prefixing every on-disk record. Bump
// it, and add a case to decode, whenever the wire shape changes; an unknown
// tag is always a CodecFailed cache miss, never a panic.
const codecVersion byte = 1

// encode lays out a vector as: 1 version byte, a little-endian uint32
// length, then that many little-endian float32s.
func encode(vec []float32) []byte {
	buf := make([]byte, 1+4+4*len(vec))
	buf[0] = codecVersion
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(vec)))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[5+4*i:9+4*i], math.Float32bits(f))
	}
	return buf
}

// decode reverses encode, returning a CodecFailed DocError (never a raw
// error) on any malformed input so callers can treat it as a cache miss.
func decode(data []byte) ([]float32, error) {
	if len(data) < 5 {
		return nil, doceerrors.New(doceerrors.CodecFailed, "embedding record too short", nil)
	}
	if data[0] != codecVersion {
		return nil, doceerrors.New(doceerrors.CodecFailed,
			fmt.Sprintf("unsupported embedding codec version %d", data[0]), nil)
	}
	n := binary.LittleEndian.Uint32(data[1:5])
	want := 5 + 4*int(n)
	if len(data) != want {
		return nil, doceerrors.New(doceerrors.CodecFailed,
			fmt.Sprintf("embedding record length mismatch: expected %d bytes, got %d", want, len(data)), nil)
	}
	vec := make([]float32, n)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(data[5+4*i : 9+4*i])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}
