// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package types

import (
	"strings"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// Metric names the distance function the nearest-neighbour guest ranks
// samples by. Lower distance is a better match for every metric.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// Valid reports whether m is a recognized metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricEuclidean, MetricCosine:
		return true
	default:
		return false
	}
}

// ParseMetric parses a case-insensitive string into a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(s))
	if !m.Valid() {
		return "", vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"invalid metric: %q", s)
	}
	return m, nil
}
