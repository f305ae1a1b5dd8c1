// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package zkvm is the boundary to the verifiable execution engine. It defines
// the program identity a proof attests to, the public journal layout, the
// receipt a proving run returns, and the Engine capability the rest of vnns
// talks to. Proof soundness is the backend's responsibility.
package zkvm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
)

// ImageIDSize is the length of a program image ID.
const ImageIDSize = sha256.Size

// ImageID is the 32-byte digest a verifier pins a proof to.
type ImageID [ImageIDSize]byte

// String returns the 0x-prefixed hex image ID.
func (id ImageID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// ParseImageID decodes a hex image ID, with or without 0x prefix.
func ParseImageID(s string) (ImageID, error) {
	var id ImageID
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, vnnserr.Wrapf(err, vnnserr.CodeArtifactDecodeInvalidFormat, "decoding image id %q", s)
	}
	if len(raw) != ImageIDSize {
		return id, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"image id must be %d bytes, got %d", ImageIDSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// ProgramID names the exact computation a proof attests to. It is passed in
// at construction time so an upgrade or rollback is a configuration change.
type ProgramID struct {
	// Name of the guest program.
	Name string
	// Version of the guest program; bump on any behavioural change.
	Version string
	// Metric the nearest-neighbour guest ranks by. Programs built for
	// different metrics have different image IDs.
	Metric types.Metric
}

// DefaultProgramName is the name of the bundled nearest-neighbour guest.
const DefaultProgramName = "vnns-nearest"

// DefaultProgramVersion is the version of the bundled guest.
const DefaultProgramVersion = "v1"

// NewProgramID validates and returns a program identity.
func NewProgramID(name, version string, metric types.Metric) (ProgramID, error) {
	p := ProgramID{Name: name, Version: version, Metric: metric}
	if err := p.Validate(); err != nil {
		return ProgramID{}, err
	}
	return p, nil
}

// Validate checks that every component is set.
func (p ProgramID) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return vnnserr.New(vnnserr.CodeConfigValidateInvalidValue, "program name must not be empty")
	}
	if strings.TrimSpace(p.Version) == "" {
		return vnnserr.New(vnnserr.CodeConfigValidateInvalidValue, "program version must not be empty")
	}
	if !p.Metric.Valid() {
		return vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue, "program metric %q is not supported", p.Metric)
	}
	return nil
}

// String renders the identity as name@version/metric.
func (p ProgramID) String() string {
	return fmt.Sprintf("%s@%s/%s", p.Name, p.Version, p.Metric)
}

// ImageID derives the digest verifiers pin proofs to.
func (p ProgramID) ImageID() ImageID {
	return sha256.Sum256([]byte(p.String()))
}
