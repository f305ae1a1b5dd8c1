// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package artifact turns receipts into portable proof artifacts and back,
// and persists them through pluggable sinks.
package artifact

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// HexPrefix prefixes every hex field of an artifact.
const HexPrefix = "0x"

// ProofArtifact is the portable form of one receipt.
type ProofArtifact struct {
	// Proof is the CBOR-encoded receipt.
	Proof string `json:"proof"`

	// ImageID identifies the program the receipt attests to.
	ImageID string `json:"image_id"`

	// PubInputs is the raw journal.
	PubInputs string `json:"pub_inputs"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: building cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: building cbor decoder: %v", err))
	}
}

// Serialize encodes receipt as an artifact for program. The receipt must
// claim program's image id.
func Serialize(receipt *zkvm.Receipt, program zkvm.ProgramID) (*ProofArtifact, error) {
	if receipt == nil {
		return nil, vnnserr.Wrap(zkvm.ErrNilReceipt, vnnserr.CodeArtifactEncodeFailure, "serializing receipt")
	}
	id := program.ImageID()
	if receipt.ImageID != id {
		return nil, vnnserr.Errorf(vnnserr.CodeArtifactEncodeFailure,
			"receipt image id %s does not belong to program %s", receipt.ImageID, program)
	}

	proof, err := encMode.Marshal(receipt)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactEncodeFailure, "encoding receipt")
	}

	return &ProofArtifact{
		Proof:     encodeHex(proof),
		ImageID:   encodeHex(id[:]),
		PubInputs: encodeHex(receipt.Journal),
	}, nil
}

// Deserialize recovers the receipt carried by art. The image id and journal
// in the outer fields must match the embedded receipt exactly.
func Deserialize(art *ProofArtifact) (*zkvm.Receipt, error) {
	if art == nil {
		return nil, vnnserr.New(vnnserr.CodeArtifactDecodeInvalidFormat, "artifact is nil")
	}

	proof, err := decodeHex("proof", art.Proof)
	if err != nil {
		return nil, err
	}
	rawID, err := decodeHex("image_id", art.ImageID)
	if err != nil {
		return nil, err
	}
	journal, err := decodeHex("pub_inputs", art.PubInputs)
	if err != nil {
		return nil, err
	}
	if len(rawID) != zkvm.ImageIDSize {
		return nil, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"image_id must be %d bytes, got %d", zkvm.ImageIDSize, len(rawID))
	}

	var receipt zkvm.Receipt
	if err := decMode.Unmarshal(proof, &receipt); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactDecodeInvalidFormat, "decoding proof")
	}

	if !bytes.Equal(receipt.ImageID[:], rawID) {
		return nil, vnnserr.Errorf(vnnserr.CodeVerificationImageMismatch,
			"image_id %s does not match the receipt's %s", art.ImageID, receipt.ImageID)
	}
	if !bytes.Equal(receipt.Journal, journal) {
		return nil, vnnserr.New(vnnserr.CodeVerificationJournalMismatch,
			"pub_inputs do not match the receipt journal")
	}
	return &receipt, nil
}

// Marshal renders art as indented JSON.
func Marshal(art *ProofArtifact) ([]byte, error) {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactEncodeFailure, "marshalling artifact")
	}
	return data, nil
}

// Parse decodes an artifact from JSON. Unknown fields are rejected.
func Parse(data []byte) (*ProofArtifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var art ProofArtifact
	if err := dec.Decode(&art); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactDecodeInvalidFormat, "parsing artifact")
	}
	if art.Proof == "" || art.ImageID == "" || art.PubInputs == "" {
		return nil, vnnserr.New(vnnserr.CodeArtifactDecodeInvalidFormat,
			"artifact must carry proof, image_id and pub_inputs")
	}
	return &art, nil
}

// Load reads and parses the artifact file at path.
func Load(path string) (*ProofArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactReadFailure, "reading artifact", vnnserr.FieldPath(path))
	}
	art, err := Parse(data)
	if err != nil {
		return nil, vnnserr.With(err, vnnserr.FieldPath(path))
	}
	return art, nil
}

func encodeHex(b []byte) string {
	return HexPrefix + hex.EncodeToString(b)
}

func decodeHex(field, s string) ([]byte, error) {
	if !strings.HasPrefix(s, HexPrefix) {
		return nil, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat, "%s must start with %q", field, HexPrefix)
	}
	b, err := hex.DecodeString(s[len(HexPrefix):])
	if err != nil {
		return nil, vnnserr.Wrapf(err, vnnserr.CodeArtifactDecodeInvalidFormat, "decoding %s", field)
	}
	return b, nil
}
