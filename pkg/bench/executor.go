package bench

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/querybench/querybench/pkg/collector"
	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

// Executor performs one timed run over an already open connection.
type Executor interface {
	Execute(ctx context.Context, conn database.Connection, coll collector.Collector, query string, runIndex int, withPlan bool) RunResult
}

type executor struct {
	log       logrus.FieldLogger
	serverID  string
	normalize metrics.NormalizeFunc
}

// Ensure interface compliance.
var _ Executor = (*executor)(nil)

// NewExecutor creates an executor for one server profile.
func NewExecutor(log logrus.FieldLogger, serverID string, normalize metrics.NormalizeFunc) Executor {
	return &executor{
		log:       log.WithField("component", "executor").WithField("server", serverID),
		serverID:  serverID,
		normalize: normalize,
	}
}

// Execute snapshots the engine counters, runs the query once and decomposes
// the timings. Counter snapshot failures degrade to zero counters rather
// than failing the run.
func (e *executor) Execute(ctx context.Context, conn database.Connection, coll collector.Collector, query string, runIndex int, withPlan bool) RunResult {
	result := RunResult{
		ServerID: e.serverID,
		RunIndex: runIndex,
	}

	before, err := coll.Snapshot(ctx)
	if err != nil {
		e.log.WithError(err).WithField("run", runIndex).Warn("Counter snapshot failed, counters for this run will read zero")

		before = nil
	}

	if withPlan {
		plan, err := conn.Plan(ctx, query)
		if err != nil {
			e.log.WithError(err).Warn("Plan retrieval failed")
		} else {
			result.Plan = plan
		}
	}

	start := time.Now()

	exec, err := conn.TimedExecute(ctx, query)

	result.ElapsedTotal = time.Since(start)

	if err != nil {
		result.Err = err
		result.ErrKind = classify(ctx, err)

		e.log.WithError(err).WithFields(logrus.Fields{
			"run":  runIndex,
			"kind": result.ErrKind,
		}).Warn("Run failed")

		return result
	}

	result.ElapsedServer = exec.ServerElapsed
	result.RowCount = exec.RowCount

	// Drivers that cannot separate server time report zero; fold the whole
	// round trip into the server share so the identity still holds.
	if result.ElapsedServer == 0 {
		result.ElapsedServer = result.ElapsedTotal
	}

	result.Latency = result.ElapsedTotal - result.ElapsedServer
	if result.Latency < 0 {
		result.Latency = 0
		result.LatencyClamped = true
	}

	if before != nil {
		after, err := coll.Snapshot(ctx)
		if err != nil {
			e.log.WithError(err).WithField("run", runIndex).Warn("Post-run counter snapshot failed, counters for this run will read zero")
		} else {
			result.Counters = e.normalize(after.Sub(before))
		}
	}

	return result
}

func classify(ctx context.Context, err error) ErrKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}

	return ErrExecution
}
