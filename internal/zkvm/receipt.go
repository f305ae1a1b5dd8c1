// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package zkvm

import (
	"errors"
)

// Receipt errors.
var (
	ErrNilReceipt = errors.New("zkvm: nil receipt")
)

// Receipt is a proof of correct execution bundled with its public journal.
type Receipt struct {
	// ImageID is the program the seal claims to attest to.
	ImageID ImageID `cbor:"1,keyasint"`

	// Seal is the backend-specific proof blob.
	Seal []byte `cbor:"2,keyasint"`

	// Journal is the encoded public output.
	Journal []byte `cbor:"3,keyasint"`
}

// DecodedJournal parses the receipt's journal.
func (r *Receipt) DecodedJournal() (Journal, error) {
	if r == nil {
		return Journal{}, ErrNilReceipt
	}
	return DecodeJournal(r.Journal)
}

// Session is the result of a non-proving execution.
type Session struct {
	ImageID ImageID
	Journal []byte
}

// DecodedJournal parses the session's journal.
func (s *Session) DecodedJournal() (Journal, error) {
	return DecodeJournal(s.Journal)
}
