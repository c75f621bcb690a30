// Package report persists raw run results as CSV and renders the analysis
// outcome for humans.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/querybench/querybench/pkg/analysis"
	"github.com/querybench/querybench/pkg/bench"
)

// csvHeader is the column layout of the raw results file. Timing columns
// hold seconds with six decimals; failed runs leave the numeric columns
// empty and carry the error text in the last column.
var csvHeader = []string{
	"server_id", "engine", "os_type", "run_index",
	"elapsed_total_seconds", "elapsed_server_seconds", "latency_seconds",
	"seq_reads", "idx_reads", "inserts", "updates", "deletes",
	"plan", "rowcount", "error",
}

// WriteCSV streams every sample's runs, successful and failed, as
// semicolon-separated CSV.
func WriteCSV(w io.Writer, samples []*bench.ServerSample) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, sample := range samples {
		for _, r := range sample.Freeze() {
			if err := cw.Write(csvRecord(sample, &r)); err != nil {
				return fmt.Errorf("writing csv record: %w", err)
			}
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	return nil
}

func csvRecord(sample *bench.ServerSample, r *bench.RunResult) []string {
	rec := []string{
		sample.ServerID,
		string(sample.Engine),
		sample.OSType,
		strconv.Itoa(r.RunIndex),
	}

	if r.Failed() {
		rec = append(rec, "", "", "", "", "", "", "", "", r.Plan, "", r.Err.Error())

		return rec
	}

	rec = append(rec,
		formatSeconds(r.ElapsedTotal.Seconds()),
		formatSeconds(r.ElapsedServer.Seconds()),
		formatSeconds(r.Latency.Seconds()),
		strconv.FormatInt(r.Counters.SeqReads, 10),
		strconv.FormatInt(r.Counters.IdxReads, 10),
		strconv.FormatInt(r.Counters.Inserts, 10),
		strconv.FormatInt(r.Counters.Updates, 10),
		strconv.FormatInt(r.Counters.Deletes, 10),
		r.Plan,
		strconv.FormatInt(r.RowCount, 10),
		"",
	)

	return rec
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

// ReadCSV parses a raw results file back into per-server series for
// re-analysis. Failed runs contribute no values. Server order follows
// first appearance in the file.
func ReadCSV(r io.Reader) ([]analysis.ServerSeries, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	if len(header) != len(csvHeader) || header[0] != csvHeader[0] {
		return nil, fmt.Errorf("unexpected csv header %v", header)
	}

	var (
		order  []string
		series = map[string]*analysis.ServerSeries{}
	)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading csv record: %w", err)
		}

		id := rec[0]

		s, ok := series[id]
		if !ok {
			s = &analysis.ServerSeries{
				ServerID: id,
				Engine:   rec[1],
				OSType:   rec[2],
				Values:   map[analysis.Field][]float64{},
			}
			series[id] = s
			order = append(order, id)
		}

		// Empty timing columns mean the run failed.
		if rec[4] == "" {
			continue
		}

		total, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing elapsed_total_seconds %q: %w", rec[4], err)
		}

		server, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing elapsed_server_seconds %q: %w", rec[5], err)
		}

		latency, err := strconv.ParseFloat(rec[6], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing latency_seconds %q: %w", rec[6], err)
		}

		s.Values[analysis.FieldElapsedTotal] = append(s.Values[analysis.FieldElapsedTotal], total)
		s.Values[analysis.FieldElapsedServer] = append(s.Values[analysis.FieldElapsedServer], server)
		s.Values[analysis.FieldLatency] = append(s.Values[analysis.FieldLatency], latency)
	}

	out := make([]analysis.ServerSeries, 0, len(order))
	for _, id := range order {
		out = append(out, *series[id])
	}

	return out, nil
}

// SeriesFromSamples converts in-memory samples to analyzer input without a
// CSV round trip.
func SeriesFromSamples(samples []*bench.ServerSample) []analysis.ServerSeries {
	out := make([]analysis.ServerSeries, 0, len(samples))

	for _, sample := range samples {
		s := analysis.ServerSeries{
			ServerID: sample.ServerID,
			Engine:   string(sample.Engine),
			OSType:   sample.OSType,
			Values:   map[analysis.Field][]float64{},
		}

		for _, r := range sample.Freeze() {
			if r.Failed() {
				continue
			}

			s.Values[analysis.FieldElapsedTotal] = append(s.Values[analysis.FieldElapsedTotal], r.ElapsedTotal.Seconds())
			s.Values[analysis.FieldElapsedServer] = append(s.Values[analysis.FieldElapsedServer], r.ElapsedServer.Seconds())
			s.Values[analysis.FieldLatency] = append(s.Values[analysis.FieldLatency], r.Latency.Seconds())
		}

		out = append(out, s)
	}

	return out
}
