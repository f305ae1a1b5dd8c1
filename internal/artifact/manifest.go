// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/vnns/internal/tournament"
	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// ManifestFileName is the name of the run manifest in the output directory.
const ManifestFileName = "manifest.yaml"

// Manifest summarises a completed proving run.
type Manifest struct {
	RunID       string          `yaml:"run_id"`
	CreatedAt   time.Time       `yaml:"created_at"`
	Program     ManifestProgram `yaml:"program"`
	Engine      string          `yaml:"engine"`
	BatchSize   int             `yaml:"batch_size"`
	Samples     int             `yaml:"samples"`
	Rounds      int             `yaml:"rounds"`
	Winner      uint32          `yaml:"winner"`
	GlobalIndex int             `yaml:"global_index"`
	Commitments Commitments     `yaml:"commitments"`
	Artifacts   []Record        `yaml:"artifacts"`
}

// ManifestProgram identifies the proven program.
type ManifestProgram struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Metric  string `yaml:"metric"`
	ImageID string `yaml:"image_id"`
}

// Commitments are the final journal's commitments, 0x-prefixed hex.
type Commitments struct {
	Query   string `yaml:"query"`
	Samples string `yaml:"samples"`
	Output  string `yaml:"output"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// RunInfo describes the run a manifest is built for.
type RunInfo struct {
	RunID     string
	Program   zkvm.ProgramID
	Engine    string
	BatchSize int
	Samples   int
}

// BuildManifest summarises a finished tournament and its persisted
// artifacts.
func BuildManifest(info RunInfo, res *tournament.Result, records []Record) *Manifest {
	final := res.Final().Journal
	return &Manifest{
		RunID:     info.RunID,
		CreatedAt: time.Now().UTC(),
		Program: ManifestProgram{
			Name:    info.Program.Name,
			Version: info.Program.Version,
			Metric:  string(info.Program.Metric),
			ImageID: info.Program.ImageID().String(),
		},
		Engine:      info.Engine,
		BatchSize:   info.BatchSize,
		Samples:     info.Samples,
		Rounds:      len(res.Rounds),
		Winner:      res.Winner,
		GlobalIndex: res.GlobalIndex,
		Commitments: Commitments{
			Query:   final.QueryCommitment.String(),
			Samples: final.SamplesCommitment.String(),
			Output:  final.OutputCommitment.String(),
		},
		Artifacts: records,
	}
}

// Validate checks that the manifest is well-formed. It returns all
// validation errors found rather than stopping at the first one.
func (m *Manifest) Validate() []error {
	var errs []error

	if _, err := uuid.Parse(m.RunID); err != nil {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"manifest validation: run_id %q is not a uuid", m.RunID))
	}
	if strings.TrimSpace(m.Program.Name) == "" || strings.TrimSpace(m.Program.Version) == "" {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"manifest validation: program name and version must not be empty"))
	}
	if !strings.HasPrefix(m.Program.ImageID, HexPrefix) {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"manifest validation: image_id must start with %q", HexPrefix))
	}
	if m.Rounds < 1 {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"manifest validation: rounds must be at least 1, got %d", m.Rounds))
	}
	if len(m.Artifacts) == 0 || !m.Artifacts[len(m.Artifacts)-1].Final {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat,
			"manifest validation: last artifact must be the final one"))
	}
	return errs
}

// WriteManifest writes m into dir and returns the file path. An existing
// manifest is never replaced.
func WriteManifest(dir string, m *Manifest) (string, error) {
	if errs := m.Validate(); len(errs) > 0 {
		// The joined errors carry decode codes; only their text is kept so
		// the encode code is the one reported.
		return "", vnnserr.Errorf(vnnserr.CodeArtifactEncodeFailure, "invalid manifest: %v", errors.Join(errs...))
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactEncodeFailure, "marshalling manifest")
	}

	path := filepath.Join(dir, ManifestFileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistConflict, "manifest already exists",
				vnnserr.FieldPath(path))
		}
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistFailure, "creating manifest", vnnserr.FieldPath(path))
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistFailure, "writing manifest", vnnserr.FieldPath(path))
	}
	if err := f.Close(); err != nil {
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistFailure, "closing manifest", vnnserr.FieldPath(path))
	}
	return path, nil
}

// ParseManifest parses YAML data into a Manifest and validates it.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, vnnserr.Errorf(vnnserr.CodeArtifactDecodeInvalidFormat, "manifest parse: %s", err)
	}
	if errs := m.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}
	return &m, nil
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactReadFailure, "reading manifest", vnnserr.FieldPath(path))
	}
	return ParseManifest(data)
}
