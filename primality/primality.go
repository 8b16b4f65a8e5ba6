/*
Package primality implements a Miller-Rabin probable prime test with random witnesses.

A composite passes a single round with probability at most 1/4, so the default of 10 rounds
bounds the false positive rate by 4^-10. A true verdict means "probably prime", never a proof.

The witnesses come from a candidate.Source. In a concurrent search, give each worker an
Oracle bound to that worker's own candidate.Generator:

	g := candidate.New()
	o := primality.New(g, primality.DefaultRounds)

	if o.IsProbablyPrime(g.Generate(64)) {
		// ...
	}
*/
package primality

import (
	"math/big"

	"github.com/gostdlib/primegen/candidate"
)

// DefaultRounds is the number of Miller-Rabin rounds used when none is given.
const DefaultRounds = 10

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
)

// Oracle is a Miller-Rabin test bound to a witness Source and a round count.
// An Oracle is as safe for concurrent use as its Source.
type Oracle struct {
	src    candidate.Source
	rounds int
}

// New creates an Oracle that draws witnesses from src. rounds < 1 uses DefaultRounds.
func New(src candidate.Source, rounds int) *Oracle {
	if rounds < 1 {
		rounds = DefaultRounds
	}
	return &Oracle{src: src, rounds: rounds}
}

// Rounds returns the number of rounds each test runs.
func (o *Oracle) Rounds() int {
	return o.rounds
}

// IsProbablyPrime reports whether n is probably prime.
func (o *Oracle) IsProbablyPrime(n *big.Int) bool {
	return IsProbablyPrime(n, o.rounds, o.src)
}

// IsProbablyPrime runs "rounds" Miller-Rabin rounds against n, drawing a fresh witness from
// src for every round. rounds < 1 uses DefaultRounds. 2 and 3 are prime, anything below 2 or
// even is not. n is not modified.
func IsProbablyPrime(n *big.Int, rounds int, src candidate.Source) bool {
	switch {
	case n.Cmp(two) == 0, n.Cmp(three) == 0:
		return true
	case n.Cmp(two) < 0, n.Bit(0) == 0:
		return false
	}
	if rounds < 1 {
		rounds = DefaultRounds
	}

	nMinus1 := new(big.Int).Sub(n, one)
	d, s := decompose(nMinus1)
	w := newWitnesses(n, src)

	x := new(big.Int)
	for i := 0; i < rounds; i++ {
		x.Exp(w.draw(), d, n)
		if x.Cmp(one) == 0 || x.Cmp(nMinus1) == 0 {
			continue
		}

		for r := 1; r < s; r++ {
			x.Mul(x, x).Mod(x, n)
			// Reaching 1 without passing through n-1 means x was a non-trivial square root
			// of 1, which only composites have. Squaring further can't change that.
			if x.Cmp(one) == 0 || x.Cmp(nMinus1) == 0 {
				break
			}
		}
		if x.Cmp(nMinus1) != 0 {
			return false
		}
	}
	return true
}

// decompose writes m as d * 2^s with d odd. m must be > 0.
func decompose(m *big.Int) (d *big.Int, s int) {
	s = int(m.TrailingZeroBits())
	return new(big.Int).Rsh(m, uint(s)), s
}

// witnesses draws Miller-Rabin witnesses uniformly from [2, n-3] by rejection sampling.
// n must be odd and >= 5.
type witnesses struct {
	src   candidate.Source
	buf   []byte
	mask  byte
	upper *big.Int // n-2, exclusive
	a     *big.Int
}

func newWitnesses(n *big.Int, src candidate.Source) *witnesses {
	bits := n.BitLen()
	mask := byte(0xFF)
	if r := bits % 8; r != 0 {
		mask = byte(1<<r) - 1
	}
	return &witnesses{
		src:   src,
		buf:   make([]byte, (bits+7)/8),
		mask:  mask,
		upper: new(big.Int).Sub(n, two),
		a:     new(big.Int),
	}
}

// draw returns the next witness. The returned value is reused by the next call.
// Masking the leading byte down to n's bit length keeps every draw below 2^bitlen(n) <= 2n,
// so for all but the smallest n about half of the draws are accepted.
func (w *witnesses) draw() *big.Int {
	for {
		candidate.Fill(w.src, w.buf)
		w.buf[0] &= w.mask
		w.a.SetBytes(w.buf)
		if w.a.Cmp(two) >= 0 && w.a.Cmp(w.upper) < 0 {
			return w.a
		}
	}
}
