// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/vnns/internal/artifact"
	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
)

// execute runs the root command in process and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeInputs writes samples and query files into a temp dir.
func writeInputs(t *testing.T, samples [][]float32, query []float32) (dir, samplesPath, queryPath string) {
	t.Helper()
	dir = t.TempDir()
	samplesPath = filepath.Join(dir, "samples.json")
	queryPath = filepath.Join(dir, "query.json")

	data, err := json.Marshal(samples)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(samplesPath, data, 0o644))
	data, err = json.Marshal(query)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(queryPath, data, 0o644))
	return dir, samplesPath, queryPath
}

func scenarioA(t *testing.T) (dir, samplesPath, queryPath string) {
	t.Helper()
	return writeInputs(t, [][]float32{{1, 0}, {0, 1}, {5, 5}}, []float32{5, 5})
}

func diagonal(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), float32(i)}
	}
	return out
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--execute")
	assert.Contains(t, out, "--prove")
	assert.Contains(t, out, "verify")
	assert.Contains(t, out, "init")
	assert.Contains(t, out, "inspect")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vnns dev (commit: unknown")
	assert.Contains(t, out, "backends: dev")

	euclidean := zkvm.ProgramID{Name: zkvm.DefaultProgramName, Version: zkvm.DefaultProgramVersion, Metric: types.MetricEuclidean}
	assert.Contains(t, out, "vnns-nearest@v1/euclidean  "+euclidean.ImageID().String())
	assert.Contains(t, out, "vnns-nearest@v1/cosine  0x")

	out, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestRoot_ModeFlags(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")

	tests := []struct {
		name string
		args []string
	}{
		{name: "neither", args: []string{"-s", missing, "-q", missing}},
		{name: "both", args: []string{"--execute", "--prove", "-s", missing, "-q", missing}},
		{name: "unreadable config ignored", args: []string{"--config", missing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			// The input files do not exist; the mode error must win.
			assert.True(t, vnnserr.HasCode(err, vnnserr.CodeConfigModeInvalid))
			assert.Equal(t, vnnserr.ExitUsage, vnnserr.ExitCode(err))
		})
	}
}

func TestRoot_UnknownFlagIsUsageError(t *testing.T) {
	_, err := execute(t, "--prove", "--frobnicate")
	require.Error(t, err)
	assert.Equal(t, vnnserr.ExitUsage, vnnserr.ExitCode(err))
}

func TestExecute_SingleChunk(t *testing.T) {
	_, samples, query := scenarioA(t)

	out, err := execute(t, "--execute", "-s", samples, "-q", query)
	require.NoError(t, err)
	assert.Contains(t, out, "Closest index: 2")
	assert.Contains(t, out, "Query Commitment: ")
	assert.Contains(t, out, "Values are correct!")
}

func TestExecute_IgnoresBatchSize(t *testing.T) {
	_, samples, query := writeInputs(t, diagonal(10), []float32{6.2, 6.2})

	out, err := execute(t, "--execute", "--batch-size", "1", "-s", samples, "-q", query)
	require.NoError(t, err)
	assert.Contains(t, out, "Closest index: 6")
}

func TestProve_SingleChunk(t *testing.T) {
	dir, samples, query := scenarioA(t)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully generated all proofs!")
	assert.Contains(t, out, "Closest sample: index 2")

	art, err := artifact.Load(filepath.Join(outDir, "proof_output_0.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(art.Proof, "0x"))
	assert.True(t, strings.HasPrefix(art.ImageID, "0x"))
	assert.True(t, strings.HasPrefix(art.PubInputs, "0x"))
	assert.NoFileExists(t, filepath.Join(outDir, "proof_output_1.json"))

	m, err := artifact.LoadManifest(filepath.Join(outDir, artifact.ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, 2, m.GlobalIndex)
	assert.Equal(t, 1, m.Rounds)
}

func TestProve_TwoRoundsWithLedger(t *testing.T) {
	dir, samples, query := writeInputs(t, diagonal(10), []float32{6.2, 6.2})
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", outDir,
		"--batch-size", "4", "--sink", "file,sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Proved round 1 chunk 2.")
	assert.Contains(t, out, "Proved final samples.")
	assert.Contains(t, out, "Closest sample: index 6")

	for i := range 4 {
		assert.FileExists(t, filepath.Join(outDir, fmt.Sprintf("proof_output_%d.json", i)))
	}
	assert.NoFileExists(t, filepath.Join(outDir, "proof_output_4.json"))
	assert.FileExists(t, filepath.Join(outDir, defaultLedgerName))

	m, err := artifact.LoadManifest(filepath.Join(outDir, artifact.ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rounds)
	require.Len(t, m.Artifacts, 4)
	assert.True(t, m.Artifacts[3].Final)
}

func TestInspect_ManifestAndLedger(t *testing.T) {
	dir, samples, query := writeInputs(t, diagonal(10), []float32{6.2, 6.2})
	outDir := filepath.Join(dir, "out")
	_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", outDir,
		"--batch-size", "4", "--sink", "file,sqlite")
	require.NoError(t, err)

	out, err := execute(t, "inspect", outDir, "--rank-query", query)
	require.NoError(t, err)
	assert.Contains(t, out, "Closest:    index 6")
	assert.Contains(t, out, "#0 round 1 chunk 0: ")
	assert.Contains(t, out, "#3 round 2 final: ")
	assert.Contains(t, out, "Ledger:     4 artifacts match the manifest")

	// The chunk-1 winner and the final winner are both sample 6; the
	// round-1 entry sorts first.
	nearest := strings.Index(out, "round 1 position 1: [6 6] (0.2828)")
	final := strings.Index(out, "round 2 position 0: [6 6] (0.2828)")
	farthest := strings.Index(out, "round 1 position 0: [3 3]")
	require.NotEqual(t, -1, nearest, out)
	assert.Less(t, nearest, final)
	assert.Less(t, final, farthest)
}

func TestInspect_WithoutLedger(t *testing.T) {
	dir, samples, query := scenarioA(t)
	outDir := filepath.Join(dir, "out")
	_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", outDir)
	require.NoError(t, err)

	out, err := execute(t, "inspect", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "#0 round 1 final: ")
	assert.Contains(t, out, "Ledger:     none")

	_, err = execute(t, "inspect", outDir, "--rank-query", query)
	require.Error(t, err)
	assert.True(t, vnnserr.IsArtifactError(err))
}

func TestInspect_Errors(t *testing.T) {
	t.Run("missing manifest", func(t *testing.T) {
		_, err := execute(t, "inspect", t.TempDir())
		require.Error(t, err)
		assert.True(t, vnnserr.HasCode(err, vnnserr.CodeArtifactReadFailure))
	})

	t.Run("query from another run", func(t *testing.T) {
		dir, samples, query := writeInputs(t, diagonal(10), []float32{6.2, 6.2})
		outDir := filepath.Join(dir, "out")
		_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", outDir, "--sink", "file,sqlite")
		require.NoError(t, err)

		_, _, other := writeInputs(t, diagonal(2), []float32{1, 1})
		_, err = execute(t, "inspect", outDir, "--rank-query", other)
		require.Error(t, err)
		assert.Equal(t, vnnserr.ExitVerification, vnnserr.ExitCode(err))
	})

	t.Run("ledger from another run", func(t *testing.T) {
		dir, samples, query := scenarioA(t)
		first := filepath.Join(dir, "first")
		second := filepath.Join(dir, "second")
		for _, d := range []string{first, second} {
			_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", d, "--sink", "file,sqlite")
			require.NoError(t, err)
		}

		_, err := execute(t, "inspect", first, "--ledger", filepath.Join(second, defaultLedgerName))
		require.Error(t, err)
		assert.True(t, vnnserr.HasCode(err, vnnserr.CodeVerificationResultMismatch))
	})
}

func TestProve_Errors(t *testing.T) {
	t.Run("batch size below two", func(t *testing.T) {
		dir, samples, query := scenarioA(t)
		_, err := execute(t, "--prove", "-s", samples, "-q", query, "--batch-size", "1", "--out-dir", dir)
		require.Error(t, err)
		assert.True(t, vnnserr.IsConfigError(err))
		assert.NoFileExists(t, filepath.Join(dir, "proof_output_0.json"))
	})

	t.Run("empty samples", func(t *testing.T) {
		dir, samples, query := writeInputs(t, [][]float32{}, []float32{1, 2})
		_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", dir)
		require.Error(t, err)
		assert.Equal(t, vnnserr.ExitInput, vnnserr.ExitCode(err))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		dir, samples, query := writeInputs(t, [][]float32{{1, 2}, {3}}, []float32{1, 2})
		_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", dir)
		require.Error(t, err)
		assert.True(t, vnnserr.IsInputError(err))
	})

	t.Run("malformed samples", func(t *testing.T) {
		dir, _, query := scenarioA(t)
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"not": "an array"}`), 0o644))
		_, err := execute(t, "--prove", "-s", bad, "-q", query, "--out-dir", dir)
		require.Error(t, err)
		assert.True(t, vnnserr.IsInputError(err))
	})

	t.Run("existing artifact is never overwritten", func(t *testing.T) {
		dir, samples, query := scenarioA(t)
		existing := filepath.Join(dir, "proof_output_0.json")
		require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o644))

		_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", dir)
		require.Error(t, err)
		assert.True(t, vnnserr.IsConflict(err))
		data, err := os.ReadFile(existing)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))
	})
}

func TestVerify(t *testing.T) {
	dir, samples, query := scenarioA(t)
	outDir := filepath.Join(dir, "out")
	_, err := execute(t, "--prove", "-s", samples, "-q", query, "--out-dir", outDir)
	require.NoError(t, err)
	proof := filepath.Join(outDir, "proof_output_0.json")

	out, err := execute(t, "verify", proof, "--check-query", query, "--check-samples", samples)
	require.NoError(t, err)
	assert.Contains(t, out, "OK (closest index 2")

	t.Run("other query", func(t *testing.T) {
		_, _, otherQuery := writeInputs(t, [][]float32{{0, 0}}, []float32{4, 4})
		_, err := execute(t, "verify", proof, "--check-query", otherQuery)
		require.Error(t, err)
		assert.Equal(t, vnnserr.ExitVerification, vnnserr.ExitCode(err))
	})

	t.Run("other metric", func(t *testing.T) {
		_, err := execute(t, "verify", proof, "--metric", "cosine")
		require.Error(t, err)
		assert.True(t, vnnserr.IsVerificationError(err))
	})

	t.Run("flipped byte", func(t *testing.T) {
		art, err := artifact.Load(proof)
		require.NoError(t, err)
		last := art.PubInputs[len(art.PubInputs)-1]
		flipped := byte('0')
		if last == '0' {
			flipped = '1'
		}
		art.PubInputs = art.PubInputs[:len(art.PubInputs)-1] + string(flipped)

		data, err := artifact.Marshal(art)
		require.NoError(t, err)
		tampered := filepath.Join(dir, "tampered.json")
		require.NoError(t, os.WriteFile(tampered, data, 0o644))

		_, err = execute(t, "verify", tampered)
		require.Error(t, err)
		assert.Equal(t, vnnserr.ExitVerification, vnnserr.ExitCode(err))
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := execute(t, "verify")
		require.Error(t, err)
	})
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "vnns.yaml")
	assert.FileExists(t, filepath.Join(dir, "vnns.yaml"))

	_, err = execute(t, "init", dir)
	require.Error(t, err)
	assert.True(t, vnnserr.IsConflict(err))
}

func TestProve_UsesConfigFile(t *testing.T) {
	dir, samples, query := writeInputs(t, diagonal(5), []float32{0.1, 0.1})
	outDir := filepath.Join(dir, "from-config")
	cfgPath := filepath.Join(dir, "vnns.yaml")
	content := fmt.Sprintf(`
input:
  samples_path: %q
  query_path: %q
tournament:
  batch_size: 2
artifacts:
  dir: %q
  manifest: false
`, samples, query, outDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	out, err := execute(t, "--prove", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Closest sample: index 0")
	// 5 -> 3 -> 2 candidates, then the final proof.
	for i := range 6 {
		assert.FileExists(t, filepath.Join(outDir, fmt.Sprintf("proof_output_%d.json", i)))
	}
	assert.NoFileExists(t, filepath.Join(outDir, artifact.ManifestFileName))
}

func TestDoctorCommand(t *testing.T) {
	out, err := execute(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Binary:")
	assert.Contains(t, out, "Program:")
	assert.Contains(t, out, "vnns-nearest@v1/euclidean")
	assert.Contains(t, out, "Engine:")
	assert.Contains(t, out, "dev ok")
	assert.Contains(t, out, "Sinks:")
	assert.Contains(t, out, "sqlite")
	assert.Contains(t, out, "Disk Space:")
}

func TestDoctorCommand_InvalidConfig(t *testing.T) {
	out, err := execute(t, "doctor", "--metric", "hamming")
	require.Error(t, err)
	assert.Contains(t, out, "invalid:")
	assert.Regexp(t, `Engine:\s+skipped`, out)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
	assert.Equal(t, "1.5 GB", formatBytes(3*512*1024*1024))
}
