// Package bench runs the benchmark itself: a pool of workers replays the
// profile's query against one server and records per-run timings and
// normalized I/O counters.
package bench

import (
	"sort"
	"sync"
	"time"

	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

// ErrKind classifies a failed run for reporting.
type ErrKind string

const (
	ErrNone      ErrKind = ""
	ErrConnect   ErrKind = "connect"
	ErrTimeout   ErrKind = "timeout"
	ErrExecution ErrKind = "execution"
)

// RunResult captures one execution of the profile query.
type RunResult struct {
	ServerID string
	RunIndex int

	// ElapsedTotal is the full round trip as seen by the client.
	// ElapsedServer covers submission to first row availability, so
	// Latency = ElapsedTotal - ElapsedServer is the transport share.
	ElapsedTotal  time.Duration
	ElapsedServer time.Duration
	Latency       time.Duration

	// LatencyClamped records that the raw latency came out negative and
	// was floored to zero.
	LatencyClamped bool

	Counters metrics.Counters
	Plan     string
	RowCount int64

	Err     error
	ErrKind ErrKind
}

// Failed reports whether the run produced no usable timing.
func (r *RunResult) Failed() bool {
	return r.Err != nil
}

// ServerSample accumulates the runs of one server profile. Workers append
// concurrently; Freeze sorts by run index and returns the final slice.
type ServerSample struct {
	ServerID string
	Engine   database.EngineKind
	OSType   string

	mu       sync.Mutex
	results  []RunResult
	failures map[ErrKind]int
}

// NewServerSample creates an empty sample for the server's labels.
func NewServerSample(serverID string, engine database.EngineKind, osType string) *ServerSample {
	return &ServerSample{
		ServerID: serverID,
		Engine:   engine,
		OSType:   osType,
		failures: map[ErrKind]int{},
	}
}

// Append records one run result.
func (s *ServerSample) Append(r RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, r)

	if r.Failed() {
		s.failures[r.ErrKind]++
	}
}

// Freeze orders the results by run index and returns them. The sample must
// not be appended to afterwards.
func (s *ServerSample) Freeze() []RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	sortByRunIndex(s.results)

	return s.results
}

// Successes counts runs that produced a timing.
func (s *ServerSample) Successes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for i := range s.results {
		if !s.results[i].Failed() {
			n++
		}
	}

	return n
}

// Failures returns the per-kind failure counts.
func (s *ServerSample) Failures() map[ErrKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[ErrKind]int, len(s.failures))
	for k, v := range s.failures {
		out[k] = v
	}

	return out
}

func sortByRunIndex(results []RunResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].RunIndex < results[j].RunIndex
	})
}
