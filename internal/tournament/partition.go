// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package tournament

import (
	"github.com/sigil-dev/vnns/internal/vector"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// ValidateBatchSize rejects a batch size that cannot reduce n samples.
// An empty sample set is an input error; a batch size below 2 with more
// than one sample is a configuration error.
func ValidateBatchSize(batch, n int) error {
	if n == 0 {
		return vnnserr.New(vnnserr.CodeInputValidateInvalidValue, "sample set is empty")
	}
	if batch < 2 && n > 1 {
		return vnnserr.New(vnnserr.CodeConfigValidateInvalidValue,
			"batch size must be at least 2 when there is more than one sample",
			vnnserr.Field("batch_size", batch), vnnserr.Field("samples", n))
	}
	return nil
}

// Partition splits samples into contiguous chunks of size batch. Only the
// last chunk may be shorter. Chunks share backing storage with samples.
func Partition(samples vector.SampleSet, batch int) []vector.SampleSet {
	if batch <= 0 || len(samples) == 0 {
		return nil
	}
	chunks := make([]vector.SampleSet, 0, (len(samples)+batch-1)/batch)
	for start := 0; start < len(samples); start += batch {
		end := min(start+batch, len(samples))
		chunks = append(chunks, samples[start:end:end])
	}
	return chunks
}

// ExpectedRounds returns how many proving rounds, final round included, a
// run over n samples performs with the given batch size. It returns 0 when
// the pair would be rejected by ValidateBatchSize.
func ExpectedRounds(n, batch int) int {
	if ValidateBatchSize(batch, n) != nil {
		return 0
	}
	rounds := 1
	for n > max(batch, 1) {
		n = (n + batch - 1) / batch
		rounds++
	}
	return rounds
}
