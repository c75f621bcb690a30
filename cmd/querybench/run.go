package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/querybench/querybench/pkg/analysis"
	"github.com/querybench/querybench/pkg/bench"
	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/report"
	"github.com/querybench/querybench/pkg/store"
	"github.com/querybench/querybench/pkg/sysinfo"
	"github.com/querybench/querybench/pkg/upload"
)

var runServers []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark against the configured servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBenchmark()
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runServers, "server", nil,
		"limit the run to these server ids (repeatable)")

	rootCmd.AddCommand(runCmd)
}

func runBenchmark() error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Global.LogLevel != "" && logLevel == "info" {
		level, err := logrus.ParseLevel(cfg.Global.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Global.LogLevel, err)
		}

		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
		cancel()
	}()

	servers, optsByID, err := benchTargets(cfg)
	if err != nil {
		return err
	}

	if len(servers) == 0 {
		return fmt.Errorf("no configured server matches the --server filter")
	}

	sys := sysinfo.NewCollector(log).Collect(ctx)
	log.WithFields(logrus.Fields{
		"hostname": sys.Hostname,
		"platform": sys.Platform,
		"cpu":      sys.CPUModel,
		"cores":    sys.CPUCores,
	}).Info("Host snapshot")

	startedAt := time.Now()

	var (
		st   store.Store
		pass *store.Pass
	)

	if cfg.Store.Enabled {
		st = store.NewStore(log, &cfg.Store.Config)
		if err := st.Start(ctx); err != nil {
			return fmt.Errorf("starting store: %w", err)
		}

		defer func() {
			if err := st.Stop(); err != nil {
				log.WithError(err).Warn("Failed to stop store")
			}
		}()

		pass = &store.Pass{
			Query:       cfg.Benchmark.Query,
			Repetitions: cfg.Benchmark.Repetitions,
			Concurrency: cfg.Benchmark.Concurrency,
			Hostname:    sys.Hostname,
			StartedAt:   startedAt,
		}
		if data, err := json.Marshal(sys); err == nil {
			pass.SystemJSON = string(data)
		}
		if err := st.CreatePass(ctx, pass); err != nil {
			return fmt.Errorf("creating pass: %w", err)
		}
	}

	log.WithField("servers", len(servers)).Info("Starting benchmark")

	orch := bench.NewOrchestrator(log)

	samples, err := orch.RunAll(ctx, servers, optsByID, cfg.Benchmark.ParallelServers)
	if err != nil {
		return fmt.Errorf("running benchmark: %w", err)
	}

	finishedAt := time.Now()

	resultsDir := filepath.Join(cfg.Output.ResultsDir, startedAt.Format("20060102-150405"))
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	if cfg.Output.CSV {
		if err := writeCSVFile(filepath.Join(resultsDir, "results.csv"), samples); err != nil {
			return err
		}
	}

	rep := analyzeSamples(samples)

	if cfg.Output.Console && rep != nil {
		if err := report.WriteConsole(os.Stdout, rep); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
	}

	if rep != nil {
		if err := writeJSONReport(filepath.Join(resultsDir, "report.json"), rep); err != nil {
			return err
		}
	}

	manifest := &report.Manifest{
		Query:      cfg.Benchmark.Query,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		System:     sys,
		Verdict:    report.VerdictFromReport(rep),
	}
	for _, sc := range cfg.Servers {
		manifest.Servers = append(manifest.Servers, report.ManifestServer{
			ID:     sc.ID,
			Engine: sc.Engine,
			OSType: sc.OSType,
			Host:   sc.Host,
		})
	}

	if err := report.WriteManifest(filepath.Join(resultsDir, "manifest.yaml"), manifest); err != nil {
		return err
	}

	if st != nil && pass != nil {
		if err := st.AppendRuns(ctx, pass.ID, storeRuns(samples)); err != nil {
			return fmt.Errorf("persisting runs: %w", err)
		}

		pass.FinishedAt = finishedAt
		if rep != nil {
			pass.Conclusive = rep.Recommendation.Conclusive
			pass.Winner = rep.Recommendation.Winner
			pass.Recommendation = rep.Recommendation.Reason
		}

		if err := st.FinishPass(ctx, pass); err != nil {
			return fmt.Errorf("finishing pass: %w", err)
		}
	}

	if cfg.Upload.Enabled {
		if err := uploadResults(ctx, cfg, resultsDir); err != nil {
			return err
		}
	}

	log.WithField("dir", resultsDir).Info("Benchmark complete")

	return nil
}

// benchTargets converts the configured servers into orchestrator inputs,
// honoring the --server filter and per-server overrides.
func benchTargets(cfg *config.Config) ([]bench.Server, map[string]bench.Options, error) {
	keep := map[string]bool{}
	for _, id := range runServers {
		keep[id] = true
	}

	servers := make([]bench.Server, 0, len(cfg.Servers))
	optsByID := make(map[string]bench.Options, len(cfg.Servers))

	for i := range cfg.Servers {
		sc := &cfg.Servers[i]

		if len(keep) > 0 && !keep[sc.ID] {
			continue
		}

		params, err := sc.ConnParams()
		if err != nil {
			return nil, nil, fmt.Errorf("server %s: %w", sc.ID, err)
		}

		servers = append(servers, bench.Server{
			ID:     sc.ID,
			OSType: sc.OSType,
			Params: params,
		})

		optsByID[sc.ID] = bench.Options{
			Query:              cfg.EffectiveQuery(sc),
			Repetitions:        cfg.EffectiveRepetitions(sc),
			Concurrency:        cfg.Benchmark.Concurrency,
			RunTimeout:         cfg.Benchmark.RunTimeout,
			ProfileTimeout:     cfg.Benchmark.ProfileTimeout,
			Interval:           cfg.Benchmark.Interval,
			MaxConnectFailures: cfg.Benchmark.MaxConnectFailures,
		}
	}

	return servers, optsByID, nil
}

// analyzeSamples runs the statistical pipeline, tolerating runs where no
// server produced a usable sample.
func analyzeSamples(samples []*bench.ServerSample) *analysis.Report {
	series := report.SeriesFromSamples(samples)

	rep, err := analysis.NewAnalyzer(log, analysis.Options{}).Analyze(series)
	if err != nil {
		log.WithError(err).Warn("Analysis skipped")

		return nil
	}

	return rep
}

func storeRuns(samples []*bench.ServerSample) []store.Run {
	var runs []store.Run

	for _, sample := range samples {
		for _, r := range sample.Freeze() {
			run := store.Run{
				ServerID: sample.ServerID,
				Engine:   string(sample.Engine),
				OSType:   sample.OSType,
				RunIndex: r.RunIndex,
				Plan:     r.Plan,
				RowCount: r.RowCount,
			}

			if r.Failed() {
				run.Error = r.Err.Error()
			} else {
				run.ElapsedTotalSec = r.ElapsedTotal.Seconds()
				run.ElapsedServerSec = r.ElapsedServer.Seconds()
				run.LatencySec = r.Latency.Seconds()
				run.SeqReads = r.Counters.SeqReads
				run.IdxReads = r.Counters.IdxReads
				run.Inserts = r.Counters.Inserts
				run.Updates = r.Counters.Updates
				run.Deletes = r.Counters.Deletes
			}

			runs = append(runs, run)
		}
	}

	return runs
}

func writeCSVFile(path string, samples []*bench.ServerSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}

	if err := report.WriteCSV(f, samples); err != nil {
		f.Close()

		return fmt.Errorf("writing csv: %w", err)
	}

	return f.Close()
}

func writeJSONReport(path string, rep *analysis.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}

func uploadResults(ctx context.Context, cfg *config.Config, dir string) error {
	up, err := upload.NewS3Uploader(log, &cfg.Upload.Config)
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}

	if err := up.Preflight(ctx); err != nil {
		return fmt.Errorf("upload preflight: %w", err)
	}

	if err := up.Upload(ctx, dir); err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}

	return nil
}
