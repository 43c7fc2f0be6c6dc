// rand/rand.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package rand provides the seedable generator that every random choice
// in the traffic simulation goes through, so that a run can be repeated.
package rand

import (
	"time"

	"github.com/MichaelTJones/pcg"
)

// PCG stream selector; any odd constant will do.
const pcgStream = 0xda3e39cb94b95bdb

type Rand struct {
	pcg *pcg.PCG32
}

// New returns a generator seeded from the clock.
func New() *Rand {
	return NewSeeded(time.Now().UnixNano())
}

func NewSeeded(seed int64) *Rand {
	r := &Rand{pcg: pcg.NewPCG32()}
	r.Seed(seed)
	return r
}

func (r *Rand) Seed(seed int64) {
	r.pcg.Seed(uint64(seed), pcgStream)
}

func (r *Rand) Uint32() uint32 { return r.pcg.Random() }

// Intn returns a value in [0,n), or 0 if n <= 0.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.pcg.Bounded(uint32(n)))
}

// Float64 returns a value in [0,1].
func (r *Rand) Float64() float64 {
	return float64(r.pcg.Random()) / float64(^uint32(0))
}

// Jitter returns v scaled by a random factor in [1-frac, 1+frac].
func (r *Rand) Jitter(v float64, frac float64) float64 {
	return v * (1 + frac*(2*r.Float64()-1))
}

// Pick returns a uniformly chosen element of s; s must not be empty.
func Pick[T any](r *Rand, s []T) T {
	return s[r.Intn(len(s))]
}
