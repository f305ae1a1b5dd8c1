// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package vector

import (
	"encoding/json"
	"os"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// LoadSamples reads a JSON array of equal-length float arrays.
func LoadSamples(path string) (SampleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeInputReadFailure, "reading samples file", vnnserr.FieldPath(path))
	}

	var samples SampleSet
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeInputParseInvalidFormat, "parsing samples JSON", vnnserr.FieldPath(path))
	}
	if len(samples) == 0 {
		return nil, vnnserr.New(vnnserr.CodeInputValidateInvalidValue, "samples file holds no samples", vnnserr.FieldPath(path))
	}

	dim := len(samples[0])
	for i, s := range samples {
		if len(s) != dim {
			return nil, vnnserr.Errorf(vnnserr.CodeInputValidateInvalidValue,
				"samples file %s: sample %d has %d components, expected %d", path, i, len(s), dim)
		}
	}
	return samples, nil
}

// LoadQuery reads a JSON array of floats.
func LoadQuery(path string) (Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeInputReadFailure, "reading query file", vnnserr.FieldPath(path))
	}

	var query Vector
	if err := json.Unmarshal(data, &query); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeInputParseInvalidFormat, "parsing query JSON", vnnserr.FieldPath(path))
	}
	if len(query) == 0 {
		return nil, vnnserr.New(vnnserr.CodeInputValidateInvalidValue, "query file holds an empty vector", vnnserr.FieldPath(path))
	}
	return query, nil
}

// Load reads both input files and checks that their dimensions agree.
func Load(samplesPath, queryPath string) (SampleSet, Vector, error) {
	samples, err := LoadSamples(samplesPath)
	if err != nil {
		return nil, nil, err
	}
	query, err := LoadQuery(queryPath)
	if err != nil {
		return nil, nil, err
	}
	if err := Validate(samples, query); err != nil {
		return nil, nil, err
	}
	return samples, query, nil
}
