// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package zkvm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sigil-dev/vnns/internal/commitment"
)

// Journal errors.
var (
	ErrJournalMalformed = errors.New("zkvm: malformed journal")
)

// JournalSize is the encoded journal length: the winner index followed by
// three length-prefixed commitments.
const JournalSize = 4 + 3*(4+commitment.Size)

// Journal is the public output of one guest execution, the only data a
// verifier trusts without re-executing.
type Journal struct {
	WinnerIndex       uint32
	QueryCommitment   commitment.Commitment
	SamplesCommitment commitment.Commitment
	OutputCommitment  commitment.Commitment
}

// Encode writes the journal fields in their fixed order: winner index,
// query, samples, output. All integers are little-endian u32.
func (j Journal) Encode() []byte {
	buf := make([]byte, 0, JournalSize)
	buf = binary.LittleEndian.AppendUint32(buf, j.WinnerIndex)
	for _, c := range []commitment.Commitment{j.QueryCommitment, j.SamplesCommitment, j.OutputCommitment} {
		buf = binary.LittleEndian.AppendUint32(buf, commitment.Size)
		buf = append(buf, c.Bytes()...)
	}
	return buf
}

// DecodeJournal parses a journal in its fixed field order and count. Any
// other shape is a protocol violation.
func DecodeJournal(b []byte) (Journal, error) {
	var j Journal
	if len(b) != JournalSize {
		return j, fmt.Errorf("%w: %d bytes, expected %d", ErrJournalMalformed, len(b), JournalSize)
	}

	j.WinnerIndex = binary.LittleEndian.Uint32(b[0:4])
	off := 4
	fields := []*commitment.Commitment{&j.QueryCommitment, &j.SamplesCommitment, &j.OutputCommitment}
	for i, dst := range fields {
		n := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		if n != commitment.Size {
			return Journal{}, fmt.Errorf("%w: field %d has length %d, expected %d", ErrJournalMalformed, i+1, n, commitment.Size)
		}
		copy(dst[:], b[off:off+commitment.Size])
		off += commitment.Size
	}
	return j, nil
}
