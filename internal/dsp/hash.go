// SPDX-License-Identifier: MIT
package dsp

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

// Checksum is the commit hash format understood by the engine: CRC-32
// (IEEE) reinterpreted as a signed 32-bit integer.
func Checksum(b []byte) int32 {
	return int32(crc32.ChecksumIEEE(b))
}

// ChecksumString hashes the UTF-8 bytes of s.
func ChecksumString(s string) int32 {
	return Checksum([]byte(s))
}

// ChecksumFloats hashes samples in their little-endian IEEE 754 form.
func ChecksumFloats(samples []float32) int32 {
	h := crc32.NewIEEE()
	var b [4]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(s))
		h.Write(b[:])
	}
	return int32(h.Sum32())
}
