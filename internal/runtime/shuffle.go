// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runtime

import (
	"crypto/rand"
	"math/big"
)

// Shuffler is the safe-fallback history pool's shuffle strategy (spec §9
// "Shuffle determinism in tests"): a pluggable seam so tests can use a
// deterministic implementation instead of the cryptographic default.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// cryptoShuffler is the production default: a Fisher-Yates shuffle
// driven by crypto/rand (spec §9: "default = cryptographic shuffle").
type cryptoShuffler struct{}

func (cryptoShuffler) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := cryptoIntn(i + 1)
		swap(i, j)
	}
}

func cryptoIntn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
