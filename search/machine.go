package search

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/gostdlib/primegen/candidate"
	"github.com/gostdlib/primegen/primality"
	"github.com/gostdlib/primegen/stages"
)

// verdict is how an iteration ended.
type verdict string

const (
	verdictEven      verdict = "even"
	verdictComposite verdict = "composite"
	verdictLate      verdict = "late"
	verdictDuplicate verdict = "duplicate"
	verdictAccepted  verdict = "accepted"
)

// worker is the state owned by a single worker goroutine. Nothing in it is shared.
type worker struct {
	id     int
	gen    *candidate.Generator
	oracle *primality.Oracle

	generated int64
	even      int64
	composite int64
}

func newWorker(id int, rounds int, seeds func(int) (uint64, uint64)) *worker {
	gen := candidate.New()
	if seeds != nil {
		gen = candidate.NewSeeded(seeds(id))
	}
	return &worker{id: id, gen: gen, oracle: primality.New(gen, rounds)}
}

// iteration is the Data of one trip through the machine: generate one candidate and
// carry it as far as it gets.
type iteration struct {
	Worker    int      `json:"worker"`
	Candidate *big.Int `json:"candidate,omitempty"`
	Verdict   verdict  `json:"verdict,omitempty"`
	Index     int      `json:"index,omitempty"`

	w *worker
}

// machine is the stages.StateMachine for a single iteration:
// Start (generate) -> RejectEven -> TestPrime -> ClaimSlot.
// Any stage that rejects the candidate ends the iteration.
type machine struct {
	byteLength int
	slots      *slots
	emit       Emitter
	log        *zap.Logger
}

// Start generates a candidate.
func (m *machine) Start(req stages.Request[iteration]) stages.Request[iteration] {
	w := req.Data.w
	req.Data.Candidate = w.gen.Generate(m.byteLength)
	w.generated++

	req.Next = m.RejectEven
	return req
}

// RejectEven ends the iteration for even candidates.
func (m *machine) RejectEven(req stages.Request[iteration]) stages.Request[iteration] {
	if req.Data.Candidate.Bit(0) == 0 {
		req.Data.w.even++
		req.Data.Verdict = verdictEven
		return req
	}

	req.Next = m.TestPrime
	return req
}

// TestPrime ends the iteration for candidates the oracle rejects.
func (m *machine) TestPrime(req stages.Request[iteration]) stages.Request[iteration] {
	w := req.Data.w
	if !w.oracle.IsProbablyPrime(req.Data.Candidate) {
		w.composite++
		req.Data.Verdict = verdictComposite
		return req
	}

	req.Next = m.ClaimSlot
	return req
}

// ClaimSlot tries to give the probable prime an index and emit it. An Emitter error
// becomes the Request's error.
func (m *machine) ClaimSlot(req stages.Request[iteration]) stages.Request[iteration] {
	out, index, err := m.slots.claim(req.Ctx, req.Data.Candidate, m.emit)
	if err != nil {
		req.Err = err
		return req
	}

	switch out {
	case late:
		req.Data.Verdict = verdictLate
	case duplicate:
		req.Data.Verdict = verdictDuplicate
	case claimed:
		req.Data.Verdict = verdictAccepted
		req.Data.Index = index
		req.Event("prime accepted", "index", index, "worker", req.Data.Worker)
		m.log.Debug(
			"accepted prime",
			zap.Int("index", index),
			zap.Int("worker", req.Data.Worker),
			zap.Int("bits", req.Data.Candidate.BitLen()),
		)
	}
	return req
}
