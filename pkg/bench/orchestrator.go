package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/querybench/querybench/pkg/collector"
	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

// ErrNoConnections reports that no worker ever managed to open a
// connection to the server.
var ErrNoConnections = errors.New("no connection could be established")

// Server identifies one benchmark target.
type Server struct {
	ID     string
	OSType string
	Params database.ConnParams
}

// Options control how one server profile is exercised.
type Options struct {
	Query       string
	Repetitions int
	Concurrency int

	// RunTimeout bounds a single execution, zero means unbounded.
	RunTimeout time.Duration

	// ProfileTimeout bounds the whole pass against one server. Submissions
	// still outstanding when it expires are recorded as timeout failures;
	// other servers' pools are unaffected.
	ProfileTimeout time.Duration

	// Interval paces run starts across all workers, zero disables pacing.
	Interval time.Duration

	// MaxConnectFailures is the consecutive open failures a worker
	// tolerates before giving up.
	MaxConnectFailures int
}

// DialFunc opens a connection for the given parameters. Injectable for
// tests; the default is database.New followed by Open.
type DialFunc func(ctx context.Context, params database.ConnParams) (database.Connection, error)

// CollectorFunc resolves the counter reader for a live connection.
type CollectorFunc func(conn database.Connection) (collector.Collector, error)

// Orchestrator drives worker pools against the configured servers.
type Orchestrator interface {
	RunServer(ctx context.Context, server Server, opts Options) (*ServerSample, error)
	RunAll(ctx context.Context, servers []Server, opts map[string]Options, parallel int) ([]*ServerSample, error)
}

type orchestrator struct {
	log          logrus.FieldLogger
	dial         DialFunc
	newCollector CollectorFunc
}

// Ensure interface compliance.
var _ Orchestrator = (*orchestrator)(nil)

// NewOrchestrator creates an orchestrator with the production dialer and
// collector factory.
func NewOrchestrator(log logrus.FieldLogger) Orchestrator {
	return &orchestrator{
		log:          log.WithField("component", "orchestrator"),
		dial:         defaultDial,
		newCollector: collector.New,
	}
}

// NewOrchestratorWith creates an orchestrator with injected dial and
// collector factories.
func NewOrchestratorWith(log logrus.FieldLogger, dial DialFunc, newCollector CollectorFunc) Orchestrator {
	return &orchestrator{
		log:          log.WithField("component", "orchestrator"),
		dial:         dial,
		newCollector: newCollector,
	}
}

func defaultDial(ctx context.Context, params database.ConnParams) (database.Connection, error) {
	conn, err := database.New(params)
	if err != nil {
		return nil, err
	}

	if err := conn.Open(ctx); err != nil {
		return nil, err
	}

	return conn, nil
}

// RunServer executes the profile against one server. It always returns a
// sample holding exactly opts.Repetitions results; runs that never got a
// connection are recorded as connect failures. The error is
// ErrNoConnections when not a single worker connected.
func (o *orchestrator) RunServer(ctx context.Context, server Server, opts Options) (*ServerSample, error) {
	if opts.Repetitions < 1 {
		return nil, fmt.Errorf("repetitions must be positive, got %d", opts.Repetitions)
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	if concurrency > opts.Repetitions {
		concurrency = opts.Repetitions
	}

	maxConnectFailures := opts.MaxConnectFailures
	if maxConnectFailures < 1 {
		maxConnectFailures = 1
	}

	log := o.log.WithField("server", server.ID)
	log.WithFields(logrus.Fields{
		"engine":      server.Params.Engine,
		"repetitions": opts.Repetitions,
		"concurrency": concurrency,
	}).Info("Starting server profile")

	sample := NewServerSample(server.ID, server.Params.Engine, server.OSType)
	exec := NewExecutor(log, server.ID, metrics.NormalizerFor(server.Params.Engine))

	// The profile deadline is derived here so it cannot reach into
	// sibling servers' pools.
	profileCtx := ctx

	if opts.ProfileTimeout > 0 {
		var cancel context.CancelFunc

		profileCtx, cancel = context.WithTimeout(ctx, opts.ProfileTimeout)
		defer cancel()
	}

	// Pre-filled job queue assigns run indices in submission order.
	jobs := make(chan int, opts.Repetitions)
	for i := 1; i <= opts.Repetitions; i++ {
		jobs <- i
	}

	close(jobs)

	var limiter *rate.Limiter
	if opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}

	var (
		group, groupCtx = errgroup.WithContext(profileCtx)
		connected       = make(chan struct{}, concurrency)
	)

	for w := 0; w < concurrency; w++ {
		worker := w

		group.Go(func() error {
			return o.worker(groupCtx, log.WithField("worker", worker), server, opts, exec, sample, jobs, limiter, maxConnectFailures, connected)
		})
	}

	err := group.Wait()

	// Leftover jobs keep the sample complete. A submission stranded by
	// the deadline is a timeout failure; one left by workers that gave
	// up connecting is a connect failure.
	for idx := range jobs {
		result := RunResult{ServerID: server.ID, RunIndex: idx}

		if ctxErr := profileCtx.Err(); ctxErr != nil {
			result.Err = fmt.Errorf("run %d: %w", idx, ctxErr)
			result.ErrKind = ErrTimeout
		} else {
			result.Err = fmt.Errorf("run %d: %w", idx, ErrNoConnections)
			result.ErrKind = ErrConnect
		}

		sample.Append(result)
	}

	if len(connected) == 0 {
		log.Warn("No worker could connect")

		return sample, ErrNoConnections
	}

	if err != nil {
		return sample, fmt.Errorf("running profile against %s: %w", server.ID, err)
	}

	log.WithFields(logrus.Fields{
		"successes": sample.Successes(),
		"failures":  sample.Failures(),
	}).Info("Server profile finished")

	return sample, nil
}

func (o *orchestrator) worker(
	ctx context.Context,
	log logrus.FieldLogger,
	server Server,
	opts Options,
	exec Executor,
	sample *ServerSample,
	jobs <-chan int,
	limiter *rate.Limiter,
	maxConnectFailures int,
	connected chan<- struct{},
) error {
	var (
		conn            database.Connection
		coll            collector.Collector
		connectFailures int
	)

	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	for idx := range jobs {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				kind := ErrExecution
				if ctx.Err() != nil {
					kind = ErrTimeout
				}

				sample.Append(RunResult{
					ServerID: server.ID,
					RunIndex: idx,
					Err:      err,
					ErrKind:  kind,
				})

				return nil
			}
		}

		if conn == nil {
			c, err := o.dial(ctx, server.Params)
			if err != nil {
				connectFailures++

				log.WithError(err).WithField("attempt", connectFailures).Warn("Connection failed")

				sample.Append(RunResult{
					ServerID: server.ID,
					RunIndex: idx,
					Err:      fmt.Errorf("connecting to %s: %w", server.ID, err),
					ErrKind:  ErrConnect,
				})

				if connectFailures >= maxConnectFailures {
					log.Warn("Connect failure budget exhausted, worker stopping")

					return nil
				}

				continue
			}

			connectFailures = 0
			conn = c

			select {
			case connected <- struct{}{}:
			default:
			}

			cl, err := o.newCollector(conn)
			if err != nil {
				return fmt.Errorf("creating collector for %s: %w", server.ID, err)
			}

			coll = cl
		}

		runCtx := ctx

		var cancel context.CancelFunc
		if opts.RunTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, opts.RunTimeout)
		}

		// The execution plan is captured once, alongside the first run.
		result := exec.Execute(runCtx, conn, coll, opts.Query, idx, idx == 1)

		if cancel != nil {
			cancel()
		}

		sample.Append(result)

		// A cancelled or expired context ends this worker quietly; the
		// drain in RunServer records the remaining submissions.
		if ctx.Err() != nil {
			return nil
		}
	}

	return nil
}

// RunAll exercises every server, sequentially when parallel <= 1 and on a
// bounded pool otherwise. Per-server options come from opts keyed by
// server ID. Samples are returned in the input order; servers that never
// connected still contribute their all-failure sample.
func (o *orchestrator) RunAll(ctx context.Context, servers []Server, opts map[string]Options, parallel int) ([]*ServerSample, error) {
	samples := make([]*ServerSample, len(servers))

	if parallel <= 1 {
		for i, server := range servers {
			sample, err := o.RunServer(ctx, server, opts[server.ID])
			if err != nil && !errors.Is(err, ErrNoConnections) {
				return nil, err
			}

			samples[i] = sample

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}

		return samples, nil
	}

	var (
		pool = pond.New(parallel, 0, pond.MinWorkers(parallel))
		errs = make([]error, len(servers))
	)

	for i, server := range servers {
		i, server := i, server

		pool.Submit(func() {
			sample, err := o.RunServer(ctx, server, opts[server.ID])
			samples[i] = sample

			if err != nil && !errors.Is(err, ErrNoConnections) {
				errs[i] = err
			}
		})
	}

	pool.StopAndWait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return samples, nil
}
