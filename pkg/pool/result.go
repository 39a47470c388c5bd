// Package pool fans chunks of render tasks out across a fixed set of
// render workers and presents a single awaitable completion point.
//
// Each worker owns one [render.Renderer] built from private copies of the
// shared initialization data, so no image memory is shared between
// goroutines at runtime. Results stream back to the caller in completion
// order; the return of [Pool.ProcessChunk] is the barrier at which every
// worker is guaranteed idle.
package pool

// Result is the outcome of one task: exactly one of Payload and Err is set.
// The pool never drops a task: every task sent into a chunk produces one
// Result, success or error, unless the pool is terminated mid-chunk.
type Result struct {
	ID       int
	RowIndex int
	NameStem string
	Payload  []byte
	Err      string
}

// Failed reports whether the result carries an error instead of a payload.
func (r Result) Failed() bool { return r.Err != "" }
