package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querybench/querybench/pkg/analysis"
	"github.com/querybench/querybench/pkg/bench"
	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

func sampleFixture() []*bench.ServerSample {
	s := bench.NewServerSample("fb1", database.EngineFirebird, "linux")
	s.Append(bench.RunResult{
		ServerID:      "fb1",
		RunIndex:      1,
		ElapsedTotal:  1500 * time.Millisecond,
		ElapsedServer: 1200 * time.Millisecond,
		Latency:       300 * time.Millisecond,
		Counters:      metrics.Counters{SeqReads: 100, IdxReads: 40, Inserts: 1},
		Plan:          "PLAN (T NATURAL)",
		RowCount:      10,
	})
	s.Append(bench.RunResult{
		ServerID: "fb1",
		RunIndex: 2,
		Err:      errors.New("lock conflict on no wait transaction"),
		ErrKind:  bench.ErrExecution,
	})

	return []*bench.ServerSample{s}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleFixture()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t,
		"server_id;engine;os_type;run_index;elapsed_total_seconds;elapsed_server_seconds;latency_seconds;seq_reads;idx_reads;inserts;updates;deletes;plan;rowcount;error",
		lines[0])

	assert.Equal(t,
		"fb1;firebird;linux;1;1.500000;1.200000;0.300000;100;40;1;0;0;PLAN (T NATURAL);10;",
		lines[1])

	// Failed runs keep their slot with empty numeric columns.
	assert.Equal(t,
		"fb1;firebird;linux;2;;;;;;;;;;;lock conflict on no wait transaction",
		lines[2])
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleFixture()))

	series, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, series, 1)

	s := series[0]
	assert.Equal(t, "fb1", s.ServerID)
	assert.Equal(t, "firebird", s.Engine)
	assert.Equal(t, "linux", s.OSType)

	// Only the successful run contributes values.
	require.Len(t, s.Values[analysis.FieldElapsedServer], 1)
	assert.InDelta(t, 1.2, s.Values[analysis.FieldElapsedServer][0], 1e-9)
	assert.InDelta(t, 1.5, s.Values[analysis.FieldElapsedTotal][0], 1e-9)
	assert.InDelta(t, 0.3, s.Values[analysis.FieldLatency][0], 1e-9)
}

func TestReadCSVRejectsForeignHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a;b;c\n1;2;3\n"))
	require.Error(t, err)
}

func TestReadCSVPreservesServerOrder(t *testing.T) {
	input := strings.Join([]string{
		strings.Join([]string{
			"server_id", "engine", "os_type", "run_index",
			"elapsed_total_seconds", "elapsed_server_seconds", "latency_seconds",
			"seq_reads", "idx_reads", "inserts", "updates", "deletes",
			"plan", "rowcount", "error",
		}, ";"),
		"b;mysql;linux;1;1.000000;0.900000;0.100000;1;2;0;0;0;;5;",
		"a;postgresql;windows;1;2.000000;1.800000;0.200000;3;4;0;0;0;;5;",
		"b;mysql;linux;2;1.100000;1.000000;0.100000;1;2;0;0;0;;5;",
	}, "\n") + "\n"

	series, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, "b", series[0].ServerID)
	assert.Len(t, series[0].Values[analysis.FieldElapsedServer], 2)
	assert.Equal(t, "a", series[1].ServerID)
}

func TestSeriesFromSamples(t *testing.T) {
	series := SeriesFromSamples(sampleFixture())
	require.Len(t, series, 1)

	assert.Equal(t, "fb1", series[0].ServerID)
	require.Len(t, series[0].Values[analysis.FieldElapsedServer], 1)
	assert.InDelta(t, 1.2, series[0].Values[analysis.FieldElapsedServer][0], 1e-9)
}
