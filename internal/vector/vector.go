// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package vector holds the float32 vectors searched by vnns, the JSON
// loaders for the samples and query files, and the nearest-neighbour
// function the guest program evaluates.
package vector

import (
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// Vector is an ordered sequence of float32 components. Vectors are treated
// as immutable once loaded.
type Vector []float32

// Dim returns the number of components.
func (v Vector) Dim() int {
	return len(v)
}

// Clone returns a copy that shares no memory with v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// SampleSet is an ordered sequence of vectors. A sample's position is the
// index reported by the guest and is significant.
type SampleSet []Vector

// Len returns the number of samples.
func (s SampleSet) Len() int {
	return len(s)
}

// Dim returns the dimensionality of the first sample, or 0 when empty.
func (s SampleSet) Dim() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// Validate checks that the set is non-empty and that every sample has the
// same dimensionality as the query.
func Validate(samples SampleSet, query Vector) error {
	if len(samples) == 0 {
		return vnnserr.New(vnnserr.CodeInputValidateInvalidValue, "samples must not be empty")
	}
	if len(query) == 0 {
		return vnnserr.New(vnnserr.CodeInputValidateInvalidValue, "query must not be empty")
	}
	for i, s := range samples {
		if len(s) != len(query) {
			return vnnserr.Errorf(vnnserr.CodeInputValidateInvalidValue,
				"dimension mismatch: sample %d has %d components, query has %d", i, len(s), len(query))
		}
	}
	return nil
}
