/*
Package stages runs Requests through a statemachine, where every public method of the
StateMachine that implements Stage is a state and execution starts with Start().

Each Stage does its work on Request.Data and sets Request.Next to the Stage to run next.
Setting Next to nil (or leaving it unset) ends the Request. Setting Request.Err ends the
Request with an error.

	type machine struct{}

	func (m *machine) Start(req stages.Request[int]) stages.Request[int] {
		if req.Data%2 == 0 {
			return req // Next is nil, we are done.
		}
		req.Next = m.Double
		return req
	}

	func (m *machine) Double(req stages.Request[int]) stages.Request[int] {
		req.Data *= 2
		return req
	}

	r, err := stages.New[int](&machine{}, stages.DAG[int]())
	if err != nil {
		// Handle error
	}
	req := r.Run(stages.Request[int]{Ctx: ctx, Data: 3})

Unlike a pipeline, a Runner does not own goroutines. Run() drives a single Request on the
calling goroutine, so many goroutines can share one Runner, each running its own loop of
Requests.

Note: This package supports OTEL spans and will record information into the span held by
the Request's Context if it is recording.
*/
package stages

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/go-json-experiment/json"
	"github.com/gostdlib/internals/otel/span"
	"github.com/johnsiilver/dynamics/method"
	"go.opentelemetry.io/otel/codes"
)

const (
	// cyclicErr is the error type for cyclic errors.
	cyclicErr = "cyclic"
)

// Error represents a typed error that this package can return.
// Not all errors are of this type.
type Error struct {
	// Type is the type of error.
	Type string
	// Msg is the message of the error.
	Msg string
}

// Error returns the Error type and message.
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Msg)
}

// IsErrCyclic returns true if the error is a cyclic error. A cyclic error is when
// a stage is called more than once in a single Request. This is only returned
// if the DAG() option is set.
func IsErrCyclic(err error) bool {
	if err == nil {
		return false
	}
	t, ok := err.(Error)
	if !ok {
		return false
	}
	return t.Type == cyclicErr
}

// seenStagesPool is a pool of seenStages objects to reduce allocations.
var seenStagesPool = sync.Pool{
	New: func() any {
		return &seenStages{}
	},
}

// seenStages tracks what stages have been called in a Request. This is used to detect
// cyclic errors. n is small, so a slice beats a map. Not safe for concurrent use.
type seenStages []string

// seen returns true if the stage has been seen before. If it has not been seen,
// it adds it to the list of seen stages.
func (s *seenStages) seen(stage string) bool {
	for _, st := range *s {
		if st == stage {
			return true
		}
	}

	*s = append(*s, stage)
	return false
}

// callTrace returns a string of the stages that have been called.
func (s *seenStages) callTrace() string {
	out := strings.Builder{}
	for i, st := range *s {
		if i != 0 {
			out.WriteString(" -> ")
		}
		out.WriteString(st)
	}
	return out.String()
}

// reset empties the seenStages so it can be reused.
func (s *seenStages) reset() *seenStages {
	*s = (*s)[:0]
	return s
}

// Request is a Request to be processed by a StateMachine.
type Request[T any] struct {
	span span.Span

	// start is when Run() started processing the Request.
	start time.Time

	// Ctx is the Context for the Request. It must not be nil.
	Ctx context.Context

	// Data is data that is processed in this Request.
	Data T

	// Err, if set, is an error for the Request. This type of error is for unrecoverable
	// errors in processing, not results about the data being processed. Those belong
	// in the data type.
	Err error

	// Next is the next stage to be executed. Must be set at each stage of a StateMachine.
	// If set to nil, the Request is done.
	Next Stage[T]

	// seenStages tracks what stages have been called in this Request. If nil, cyclic
	// errors are not checked.
	seenStages *seenStages
}

/*
Event records an OTEL event into the Request span with name and keyvalues. This allows for stages
in your statemachine to record entry and exit through each stage. keyvalues must be an even number with every
even value a string representing the key, with the following value representing the value
associated with that key. The following values are supported:

- bool/[]bool
- float64/[]float64
- int/[]int
- int64/[]int64
- string/[]string
- time.Duration/[]time.Duration

Note: This is a no-op if the Request is not recording.
*/
func (r Request[T]) Event(name string, keyValues ...any) error {
	if r.span.Span == nil || !r.span.Span.IsRecording() {
		return nil
	}
	return r.span.Event(name, keyValues...)
}

func (r Request[T]) otelStart() {
	if r.span.Span == nil || !r.span.Span.IsRecording() {
		return
	}

	r.span.Event("processing start", "data", marshalData(r.Data))
}

func (r Request[T]) otelEnd() {
	if r.span.Span == nil || !r.span.Span.IsRecording() {
		return
	}
	if r.Err != nil {
		r.span.Status(codes.Error, r.Err.Error())
	}
	r.span.Event(
		"processing end",
		"data", marshalData(r.Data),
		"elapsed_ns", time.Since(r.start),
	)
}

func marshalData(v any) string {
	j, err := json.Marshal(v)
	if err != nil {
		j = []byte(fmt.Sprintf("Error marshaling data: %s", err.Error()))
	}
	return *(*string)(unsafe.Pointer(&j))
}

// StateMachine represents a state machine where the methods that implement Stage
// are the States and execution starts with the Start() method.
type StateMachine[T any] interface {
	// Start is the starting Stage of the StateMachine.
	Start(req Request[T]) Request[T]
}

// Stage represents a function that executes at a given state.
type Stage[T any] func(req Request[T]) Request[T]

// PreProcessor is called before each Stage. If req.Err is set
// execution of the Request in the StateMachine stops.
type PreProcessor[T any] func(req Request[T]) Request[T]

// Runner runs Requests through a StateMachine. It is safe for concurrent use.
type Runner[T any] struct {
	sm            StateMachine[T]
	preProcessors []PreProcessor[T]
	stages        int

	stats *stats
	// dag is true if the DAG() option was set.
	dag bool
}

// Option is an option for the New() constructor.
type Option[T any] func(r *Runner[T]) error

// DAG makes the StateMachine a Directed Acyclic Graph. This means that no Stage
// can be called more than once in a single Request. If a Stage is called more than
// once, the request will exit with a cyclic error that can be detected with IsErrCyclic().
func DAG[T any]() Option[T] {
	return func(r *Runner[T]) error {
		r.dag = true
		return nil
	}
}

// PreProcessors provides a set of functions that are called in order
// at each stage in the StateMachine. This is used to do work that is common to
// each stage instead of having to call the same code. Similar to http.HandleFunc
// wrapping techniques.
func PreProcessors[T any](p ...PreProcessor[T]) Option[T] {
	return func(r *Runner[T]) error {
		for _, pp := range p {
			if pp == nil {
				return fmt.Errorf("cannot pass a nil PreProcessor")
			}
		}
		r.preProcessors = append(r.preProcessors, p...)
		return nil
	}
}

// resetNext is a PreProcessor we use to reset req.Next at each stage. This prevents
// accidental infinite loop scenarios.
func resetNext[T any](req Request[T]) Request[T] {
	req.Next = nil
	return req
}

// New creates a new Runner for sm. sm must have at least one public method that
// implements Stage.
func New[T any](sm StateMachine[T], options ...Option[T]) (*Runner[T], error) {
	if sm == nil {
		return nil, fmt.Errorf("must provide a valid StateMachine")
	}

	r := &Runner[T]{
		sm:    sm,
		stats: &stats{},
		preProcessors: []PreProcessor[T]{
			resetNext[T],
		},
	}

	for _, o := range options {
		if err := o(r); err != nil {
			return nil, err
		}
	}

	r.stages = numStages[T](sm)
	if r.stages == 0 {
		return nil, fmt.Errorf("did not find any Public methods that implement Stages")
	}

	return r, nil
}

// Stages returns the number of Stages found on the StateMachine.
func (r *Runner[T]) Stages() int {
	return r.stages
}

// Stats returns stats about all Requests run so far.
func (r *Runner[T]) Stats() Stats {
	return r.stats.toStats()
}

// Run drives req through the StateMachine starting at Start(). It returns when a Stage
// leaves Next == nil, a Stage or PreProcessor sets req.Err or req.Ctx is done.
// A Request with a nil Ctx has its Err set and is returned without running.
func (r *Runner[T]) Run(req Request[T]) Request[T] {
	if req.Ctx == nil {
		req.Err = fmt.Errorf("Request.Ctx cannot be nil")
		return req
	}

	req.start = time.Now()
	req.span = span.Get(req.Ctx)
	req.otelStart()

	if r.dag {
		req.seenStages = seenStagesPool.Get().(*seenStages).reset()
	}

	r.stats.running.Add(1)
	req = r.process(req)
	r.calcExitStats(req)

	if req.seenStages != nil {
		seenStagesPool.Put(req.seenStages)
		req.seenStages = nil
	}
	req.otelEnd()
	return req
}

// process loops through all our states starting with Start until we get either an
// error or Request.Next == nil.
func (r *Runner[T]) process(req Request[T]) Request[T] {
	stage := r.sm.Start
	for {
		// If the context has been cancelled, stop processing.
		if req.Ctx.Err() != nil {
			req.Err = req.Ctx.Err()
			return req
		}

		if req.seenStages != nil {
			if req.seenStages.seen(methodName(stage)) {
				req.Err = Error{Type: cyclicErr, Msg: req.seenStages.callTrace()}
				return req
			}
		}

		for _, pp := range r.preProcessors {
			req = pp(req)
			if req.Err != nil {
				return req
			}
		}
		req = stage(req)
		if req.Err != nil {
			return req
		}
		stage = req.Next

		if stage == nil {
			return req
		}
	}
}

// calcExitStats calculates the final stats when a Request is done.
func (r *Runner[T]) calcExitStats(req Request[T]) {
	runTime := time.Since(req.start)

	r.stats.running.Add(-1)
	r.stats.completed.Add(1)

	setMin(&r.stats.min, int64(runTime))
	setMax(&r.stats.max, int64(runTime))
	r.stats.avgTotal.Add(int64(runTime))
}

func numStages[T any](sm any) int {
	var sig Stage[T]
	count := 0
	for range method.MatchesSignature(reflect.ValueOf(sm), reflect.ValueOf(sig)) {
		count++
	}
	return count
}

func methodName(method any) string {
	return runtime.FuncForPC(reflect.ValueOf(method).Pointer()).Name()
}
