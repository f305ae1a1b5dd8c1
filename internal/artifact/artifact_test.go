// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package artifact_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigil-dev/vnns/internal/artifact"
	"github.com/sigil-dev/vnns/internal/vector"
	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProgram(t *testing.T) zkvm.ProgramID {
	t.Helper()
	p, err := zkvm.NewProgramID(zkvm.DefaultProgramName, zkvm.DefaultProgramVersion, types.MetricEuclidean)
	require.NoError(t, err)
	return p
}

func testEngine(t *testing.T, program zkvm.ProgramID) zkvm.Engine {
	t.Helper()
	guests, err := zkvm.DefaultGuests(program)
	require.NoError(t, err)
	eng, err := zkvm.NewEngine(zkvm.DevBackendName, guests, zkvm.Options{})
	require.NoError(t, err)
	return eng
}

func proveScenario(t *testing.T) (*zkvm.Receipt, zkvm.ProgramID, zkvm.Engine) {
	t.Helper()
	program := testProgram(t)
	eng := testEngine(t, program)
	r, err := eng.Prove(context.Background(), program, zkvm.Input{
		Samples: vector.SampleSet{{1, 0}, {0, 1}, {5, 5}},
		Query:   vector.Vector{5, 5},
	})
	require.NoError(t, err)
	return r, program, eng
}

func flipHexByte(t *testing.T, s string, at int) string {
	t.Helper()
	raw, err := hex.DecodeString(strings.TrimPrefix(s, artifact.HexPrefix))
	require.NoError(t, err)
	raw[at] ^= 0x01
	return artifact.HexPrefix + hex.EncodeToString(raw)
}

func TestSerialize_Fields(t *testing.T) {
	r, program, _ := proveScenario(t)

	art, err := artifact.Serialize(r, program)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(art.Proof, "0x"))
	assert.Equal(t, program.ImageID().String(), art.ImageID)
	assert.Equal(t, "0x"+hex.EncodeToString(r.Journal), art.PubInputs)

	data, err := artifact.Marshal(art)
	require.NoError(t, err)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.ElementsMatch(t, []string{"proof", "image_id", "pub_inputs"}, keys(fields))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestSerialize_Deterministic(t *testing.T) {
	r, program, _ := proveScenario(t)
	a, err := artifact.Serialize(r, program)
	require.NoError(t, err)
	b, err := artifact.Serialize(r, program)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerialize_RejectsForeignReceipt(t *testing.T) {
	r, _, _ := proveScenario(t)
	other, err := zkvm.NewProgramID(zkvm.DefaultProgramName, "v2", types.MetricEuclidean)
	require.NoError(t, err)

	_, err = artifact.Serialize(r, other)
	assert.True(t, vnnserr.HasCode(err, vnnserr.CodeArtifactEncodeFailure))

	_, err = artifact.Serialize(nil, other)
	assert.True(t, vnnserr.IsArtifactError(err))
}

func TestRoundTrip_RecoversJournalAndVerifies(t *testing.T) {
	r, program, eng := proveScenario(t)

	art, err := artifact.Serialize(r, program)
	require.NoError(t, err)
	data, err := artifact.Marshal(art)
	require.NoError(t, err)
	parsed, err := artifact.Parse(data)
	require.NoError(t, err)

	got, err := artifact.Deserialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, r.Journal, got.Journal)
	assert.Equal(t, r.Seal, got.Seal)
	assert.Equal(t, r.ImageID, got.ImageID)
	require.NoError(t, eng.Verify(got, program))

	j, err := got.DecodedJournal()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), j.WinnerIndex)
}

func TestDeserialize_FlippedBytesFailVerification(t *testing.T) {
	r, program, eng := proveScenario(t)
	art, err := artifact.Serialize(r, program)
	require.NoError(t, err)

	t.Run("pub_inputs", func(t *testing.T) {
		bad := *art
		bad.PubInputs = flipHexByte(t, art.PubInputs, 0)
		_, err := artifact.Deserialize(&bad)
		require.Error(t, err)
		assert.True(t, vnnserr.IsVerificationError(err))
	})

	t.Run("image_id", func(t *testing.T) {
		bad := *art
		bad.ImageID = flipHexByte(t, art.ImageID, 5)
		_, err := artifact.Deserialize(&bad)
		require.Error(t, err)
		assert.True(t, vnnserr.IsVerificationError(err))
	})

	t.Run("journal inside proof", func(t *testing.T) {
		proof, err := hex.DecodeString(strings.TrimPrefix(art.Proof, artifact.HexPrefix))
		require.NoError(t, err)
		bad := *art
		bad.Proof = flipHexByte(t, art.Proof, len(proof)-1)
		_, err = artifact.Deserialize(&bad)
		require.Error(t, err)
		assert.True(t, vnnserr.IsVerificationError(err))
	})

	t.Run("seal inside proof", func(t *testing.T) {
		proof, err := hex.DecodeString(strings.TrimPrefix(art.Proof, artifact.HexPrefix))
		require.NoError(t, err)
		at := bytes.Index(proof, r.Seal)
		require.GreaterOrEqual(t, at, 0)

		bad := *art
		bad.Proof = flipHexByte(t, art.Proof, at+len(r.Seal)-1)
		got, err := artifact.Deserialize(&bad)
		require.NoError(t, err)

		err = eng.Verify(got, program)
		require.Error(t, err)
		assert.True(t, vnnserr.IsVerificationError(err))
	})
}

func TestDeserialize_MalformedFields(t *testing.T) {
	r, program, _ := proveScenario(t)
	art, err := artifact.Serialize(r, program)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(a *artifact.ProofArtifact)
	}{
		{name: "missing prefix", mutate: func(a *artifact.ProofArtifact) { a.Proof = strings.TrimPrefix(a.Proof, "0x") }},
		{name: "bad hex", mutate: func(a *artifact.ProofArtifact) { a.PubInputs = "0xzz" }},
		{name: "short image id", mutate: func(a *artifact.ProofArtifact) { a.ImageID = "0x0102" }},
		{name: "not cbor", mutate: func(a *artifact.ProofArtifact) { a.Proof = "0xff" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := *art
			tt.mutate(&bad)
			_, err := artifact.Deserialize(&bad)
			require.Error(t, err)
			assert.True(t, vnnserr.HasCode(err, vnnserr.CodeArtifactDecodeInvalidFormat))
		})
	}

	_, err = artifact.Deserialize(nil)
	assert.True(t, vnnserr.IsArtifactError(err))
}

func TestParse_Errors(t *testing.T) {
	_, err := artifact.Parse([]byte(`{"proof":"0x00","image_id":"0x00","pub_inputs":"0x00","extra":1}`))
	assert.True(t, vnnserr.HasCode(err, vnnserr.CodeArtifactDecodeInvalidFormat))

	_, err = artifact.Parse([]byte(`{"proof":"0x00"}`))
	assert.True(t, vnnserr.HasCode(err, vnnserr.CodeArtifactDecodeInvalidFormat))

	_, err = artifact.Parse([]byte(`not json`))
	assert.True(t, vnnserr.HasCode(err, vnnserr.CodeArtifactDecodeInvalidFormat))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := artifact.Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, vnnserr.HasCode(err, vnnserr.CodeArtifactReadFailure))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
