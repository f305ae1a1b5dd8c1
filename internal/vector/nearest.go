// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package vector

import (
	"math"

	"github.com/viant/vec/search"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
)

// DistanceFunc computes the distance between two vectors of equal length.
type DistanceFunc func(a, b Vector) float32

// Distance resolves the callable distance implementation for a metric.
func Distance(m types.Metric) (DistanceFunc, error) {
	switch m {
	case types.MetricEuclidean, "":
		return EuclideanDistance, nil
	case types.MetricCosine:
		return CosineDistance, nil
	default:
		return nil, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue, "unsupported metric %q", m)
	}
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b Vector) float32 {
	return search.Float32s(a).EuclideanDistance([]float32(b))
}

// CosineDistance returns 1 - cosine similarity. A zero-magnitude vector is
// treated as orthogonal to everything.
func CosineDistance(a, b Vector) float32 {
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 1
	}
	return va.CosineDistance([]float32(b))
}

// Nearest returns the index of the sample closest to query. Ties resolve to
// the lowest index; NaN distances never win.
func Nearest(samples SampleSet, query Vector, distance DistanceFunc) (int, error) {
	if err := Validate(samples, query); err != nil {
		return 0, err
	}

	best := -1
	bestDist := float32(math.Inf(1))
	for i, s := range samples {
		d := distance(s, query)
		if math.IsNaN(float64(d)) {
			continue
		}
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return 0, vnnserr.New(vnnserr.CodeInputValidateInvalidValue, "no sample has a finite distance to the query")
	}
	return best, nil
}
