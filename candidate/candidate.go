/*
Package candidate generates the random integers a prime search tests.

A Generator owns its own PCG source, so each search worker should hold its own Generator
instead of sharing one behind a lock:

	g := candidate.New()
	v := g.Generate(32) // a 255 bit non-negative integer, odd or even

Generated values are never rejected here. Filtering out even values is up to the caller.

This is not a source of cryptographic randomness.
*/
package candidate

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/rand/v2"
)

// Source provides random 64 bit words. *rand.Rand from math/rand/v2 implements Source.
type Source interface {
	Uint64() uint64
}

// Fill fills p with bytes drawn from src, one 64 bit word per 8 bytes.
func Fill(src Source, p []byte) {
	var word [8]byte
	for len(p) >= 8 {
		binary.LittleEndian.PutUint64(p, src.Uint64())
		p = p[8:]
	}
	if len(p) > 0 {
		binary.LittleEndian.PutUint64(word[:], src.Uint64())
		copy(p, word[:])
	}
}

// Generator produces fixed length candidates. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

var _ Source = &Generator{}

// New returns a Generator seeded from the runtime's global generator. Every call gets
// independent seeds, so Generators created for parallel workers do not produce
// correlated streams.
func New() *Generator {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a Generator with a fixed seed. Two Generators with the same seeds produce
// the same candidates.
func NewSeeded(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Uint64 implements Source.
func (g *Generator) Uint64() uint64 {
	return g.rng.Uint64()
}

// Bytes returns byteLength random bytes in big-endian order with the most significant bit
// cleared. byteLength must be > 0.
func (g *Generator) Bytes(byteLength int) []byte {
	if byteLength < 1 {
		panic(fmt.Sprintf("candidate: byteLength must be > 0, got %d", byteLength))
	}
	b := make([]byte, byteLength)
	Fill(g, b)
	b[0] &= 0x7F
	return b
}

// Generate returns a non-negative integer built from byteLength random bytes with the most
// significant bit cleared, so the result is always < 2^(8*byteLength-1). byteLength must be > 0.
func (g *Generator) Generate(byteLength int) *big.Int {
	return new(big.Int).SetBytes(g.Bytes(byteLength))
}
