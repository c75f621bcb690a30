package bench

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querybench/querybench/pkg/collector"
	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

func testServer(id string) Server {
	return Server{
		ID:     id,
		OSType: "linux",
		Params: database.ConnParams{
			Engine:   database.EngineMySQL,
			Host:     "localhost",
			Database: "bench",
			User:     "bench",
		},
	}
}

func stubDial(conn *stubConn, err error) DialFunc {
	return func(context.Context, database.ConnParams) (database.Connection, error) {
		if err != nil {
			return nil, err
		}

		return conn, nil
	}
}

func stubCollectorFactory(database.Connection) (collector.Collector, error) {
	return &stubCollector{}, nil
}

func TestRunServerCompleteSample(t *testing.T) {
	conn := &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond, rowCount: 1}
	orch := NewOrchestratorWith(testLogger(), stubDial(conn, nil), stubCollectorFactory)

	sample, err := orch.RunServer(context.Background(), testServer("my1"), Options{
		Query:       "SELECT 1",
		Repetitions: 5,
		Concurrency: 2,
	})
	require.NoError(t, err)

	results := sample.Freeze()
	require.Len(t, results, 5)

	seen := map[int]bool{}
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.False(t, seen[r.RunIndex], "run index %d assigned twice", r.RunIndex)
		seen[r.RunIndex] = true
		assert.Equal(t, "my1", r.ServerID)
	}

	for i := 1; i <= 5; i++ {
		assert.True(t, seen[i], "run index %d missing", i)
	}

	assert.Equal(t, 5, sample.Successes())
	assert.Equal(t, int32(5), conn.executes.Load())
}

func TestRunServerPlanOnFirstRunOnly(t *testing.T) {
	var planned atomic.Int32

	conn := &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond, plan: "EXPLAIN"}
	orch := NewOrchestratorWith(testLogger(), stubDial(conn, nil), stubCollectorFactory)

	sample, err := orch.RunServer(context.Background(), testServer("my1"), Options{
		Query:       "SELECT 1",
		Repetitions: 4,
		Concurrency: 1,
	})
	require.NoError(t, err)

	for _, r := range sample.Freeze() {
		if r.Plan != "" {
			planned.Add(1)
			assert.Equal(t, 1, r.RunIndex)
		}
	}

	assert.Equal(t, int32(1), planned.Load())
}

func TestRunServerNeverConnects(t *testing.T) {
	orch := NewOrchestratorWith(testLogger(), stubDial(nil, errors.New("connection refused")), stubCollectorFactory)

	sample, err := orch.RunServer(context.Background(), testServer("my1"), Options{
		Query:              "SELECT 1",
		Repetitions:        5,
		Concurrency:        2,
		MaxConnectFailures: 3,
	})
	require.ErrorIs(t, err, ErrNoConnections)

	results := sample.Freeze()
	require.Len(t, results, 5, "every repetition is accounted for")

	for _, r := range results {
		require.Error(t, r.Err)
		assert.Equal(t, ErrConnect, r.ErrKind)
	}

	assert.Zero(t, sample.Successes())
	assert.Equal(t, 5, sample.Failures()[ErrConnect])
}

func TestRunServerRecoversAfterConnectFailures(t *testing.T) {
	conn := &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond}

	var attempts atomic.Int32

	dial := func(context.Context, database.ConnParams) (database.Connection, error) {
		if attempts.Add(1) <= 2 {
			return nil, errors.New("connection refused")
		}

		return conn, nil
	}

	orch := NewOrchestratorWith(testLogger(), dial, stubCollectorFactory)

	sample, err := orch.RunServer(context.Background(), testServer("my1"), Options{
		Query:              "SELECT 1",
		Repetitions:        6,
		Concurrency:        1,
		MaxConnectFailures: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, sample.Successes())
	assert.Equal(t, 2, sample.Failures()[ErrConnect])
}

func TestRunServerProfileDeadline(t *testing.T) {
	conn := &stubConn{engine: database.EngineMySQL, execDelay: 250 * time.Millisecond}
	orch := NewOrchestratorWith(testLogger(), stubDial(conn, nil), stubCollectorFactory)

	sample, err := orch.RunServer(context.Background(), testServer("my1"), Options{
		Query:          "SELECT 1",
		Repetitions:    4,
		Concurrency:    1,
		ProfileTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err, "an expired deadline is not a hard failure once a worker connected")

	results := sample.Freeze()
	require.Len(t, results, 4, "every repetition is accounted for")

	for _, r := range results {
		require.Error(t, r.Err)
		assert.Equal(t, ErrTimeout, r.ErrKind, "run %d", r.RunIndex)
	}

	assert.Zero(t, sample.Successes())
	assert.Equal(t, 4, sample.Failures()[ErrTimeout])
}

func TestRunServerDeadlineLeavesSiblingsAlone(t *testing.T) {
	dial := func(_ context.Context, params database.ConnParams) (database.Connection, error) {
		if params.Host == "slow" {
			return &stubConn{engine: database.EngineMySQL, execDelay: 250 * time.Millisecond}, nil
		}

		return &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond}, nil
	}

	orch := NewOrchestratorWith(testLogger(), dial, stubCollectorFactory)

	slow := testServer("slow")
	slow.Params.Host = "slow"

	samples, err := orch.RunAll(context.Background(), []Server{slow, testServer("ok")}, map[string]Options{
		"slow": {Query: "SELECT 1", Repetitions: 2, ProfileTimeout: 60 * time.Millisecond},
		"ok":   {Query: "SELECT 1", Repetitions: 3},
	}, 1)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Zero(t, samples[0].Successes())
	assert.Equal(t, 2, samples[0].Failures()[ErrTimeout])

	assert.Equal(t, 3, samples[1].Successes(), "the sibling profile runs to completion")
}

func TestRunServerRejectsZeroRepetitions(t *testing.T) {
	orch := NewOrchestratorWith(testLogger(), stubDial(&stubConn{}, nil), stubCollectorFactory)

	_, err := orch.RunServer(context.Background(), testServer("my1"), Options{Query: "SELECT 1"})
	require.Error(t, err)
}

func TestRunAllSequential(t *testing.T) {
	conn := &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond}
	orch := NewOrchestratorWith(testLogger(), stubDial(conn, nil), stubCollectorFactory)

	servers := []Server{testServer("a"), testServer("b")}
	opts := map[string]Options{
		"a": {Query: "SELECT 1", Repetitions: 2},
		"b": {Query: "SELECT 1", Repetitions: 3},
	}

	samples, err := orch.RunAll(context.Background(), servers, opts, 1)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "a", samples[0].ServerID)
	assert.Len(t, samples[0].Freeze(), 2)
	assert.Equal(t, "b", samples[1].ServerID)
	assert.Len(t, samples[1].Freeze(), 3)
}

func TestRunAllParallelKeepsOrder(t *testing.T) {
	orch := NewOrchestratorWith(testLogger(), func(context.Context, database.ConnParams) (database.Connection, error) {
		return &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond}, nil
	}, stubCollectorFactory)

	servers := []Server{testServer("a"), testServer("b"), testServer("c")}
	opts := map[string]Options{
		"a": {Query: "SELECT 1", Repetitions: 2},
		"b": {Query: "SELECT 1", Repetitions: 2},
		"c": {Query: "SELECT 1", Repetitions: 2},
	}

	samples, err := orch.RunAll(context.Background(), servers, opts, 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, samples[i].ServerID)
	}
}

func TestRunAllKeepsUnreachableServerSample(t *testing.T) {
	dial := func(_ context.Context, params database.ConnParams) (database.Connection, error) {
		if params.Host == "down" {
			return nil, errors.New("no route to host")
		}

		return &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond}, nil
	}

	orch := NewOrchestratorWith(testLogger(), dial, stubCollectorFactory)

	down := testServer("down")
	down.Params.Host = "down"

	samples, err := orch.RunAll(context.Background(), []Server{testServer("up"), down}, map[string]Options{
		"up":   {Query: "SELECT 1", Repetitions: 2},
		"down": {Query: "SELECT 1", Repetitions: 2, MaxConnectFailures: 1},
	}, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, samples[0].Successes())
	assert.Zero(t, samples[1].Successes())
	assert.Len(t, samples[1].Freeze(), 2)
}

func TestNormalizerWiring(t *testing.T) {
	// NormalizerFor is resolved from the server's engine; a MySQL sample
	// maps handler counters into the universal fields.
	conn := &stubConn{engine: database.EngineMySQL, serverElapsed: time.Millisecond}

	factory := func(database.Connection) (collector.Collector, error) {
		return &stubCollector{
			snapshots: []metrics.Raw{
				{"handler_read_rnd_next": 10},
				{"handler_read_rnd_next": 25},
			},
		}, nil
	}

	orch := NewOrchestratorWith(testLogger(), stubDial(conn, nil), factory)

	sample, err := orch.RunServer(context.Background(), testServer("my1"), Options{
		Query:       "SELECT 1",
		Repetitions: 1,
	})
	require.NoError(t, err)

	results := sample.Freeze()
	require.Len(t, results, 1)
	assert.Equal(t, int64(15), results[0].Counters.SeqReads)
}
