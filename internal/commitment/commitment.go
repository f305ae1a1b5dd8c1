// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package commitment computes the digests that bind a proof to the exact
// byte content of its inputs and output.
//
// A vector is canonicalised by writing each float32 as its 4-byte IEEE-754
// bit pattern in little-endian order (the guest target's native order),
// components in order, vectors in order. The concatenation is hashed with
// SHA-256. The guest program and every external verifier must use this
// encoding; a mismatch breaks the output-commitment check.
package commitment

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"

	"github.com/sigil-dev/vnns/internal/vector"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// Size is the length of a commitment in bytes.
const Size = sha256.Size

// Commitment is a SHA-256 digest over canonically encoded vectors.
type Commitment [Size]byte

// Canonical returns the exact preimage hashed by Of.
func Canonical(vectors ...vector.Vector) []byte {
	n := 0
	for _, v := range vectors {
		n += len(v) * 4
	}
	buf := make([]byte, 0, n)
	for _, v := range vectors {
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

// Of commits to the given vectors in order.
func Of(vectors ...vector.Vector) Commitment {
	return sha256.Sum256(Canonical(vectors...))
}

// OfVector commits to a single vector.
func OfVector(v vector.Vector) Commitment {
	return Of(v)
}

// OfSampleSet commits to a whole sample set, flattened in order.
func OfSampleSet(s vector.SampleSet) Commitment {
	return Of(s...)
}

// Bytes returns the digest as a slice.
func (c Commitment) Bytes() []byte {
	return c[:]
}

// Hex returns the digest as lower-case hex without prefix.
func (c Commitment) Hex() string {
	return hex.EncodeToString(c[:])
}

// String returns the 0x-prefixed hex digest.
func (c Commitment) String() string {
	return "0x" + c.Hex()
}

// Equal reports whether c and o are the same digest.
func (c Commitment) Equal(o Commitment) bool {
	return bytes.Equal(c[:], o[:])
}

// FromBytes copies a 32-byte slice into a Commitment.
func FromBytes(b []byte) (Commitment, error) {
	var c Commitment
	if len(b) != Size {
		return c, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"commitment must be %d bytes, got %d", Size, len(b))
	}
	copy(c[:], b)
	return c, nil
}

// Parse decodes a hex digest, with or without a 0x prefix.
func Parse(s string) (Commitment, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Commitment{}, vnnserr.Wrapf(err, vnnserr.CodeArtifactDecodeInvalidFormat, "decoding commitment %q", s)
	}
	return FromBytes(raw)
}
