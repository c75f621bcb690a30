// Package metrics normalizes engine-specific I/O counters into a common
// vocabulary. Everything above this package operates only on the five
// universal fields; no engine branching survives past the normalizer table.
package metrics

import (
	"github.com/querybench/querybench/pkg/database"
)

// Raw is an engine-specific counter snapshot keyed by counter name.
type Raw map[string]int64

// Sub returns the per-key delta of r against an earlier snapshot. Keys
// missing on either side contribute zero, never absence.
func (r Raw) Sub(prev Raw) Raw {
	delta := make(Raw, len(r))

	for k, v := range r {
		delta[k] = v - prev[k]
	}

	for k := range prev {
		if _, ok := r[k]; !ok {
			delta[k] = -prev[k]
		}
	}

	return delta
}

// Counters are the universal I/O fields every engine maps onto.
type Counters struct {
	SeqReads int64 `json:"seq_reads"`
	IdxReads int64 `json:"idx_reads"`
	Inserts  int64 `json:"inserts"`
	Updates  int64 `json:"updates"`
	Deletes  int64 `json:"deletes"`
}

// NormalizeFunc maps a raw counter delta onto the universal fields.
type NormalizeFunc func(delta Raw) Counters

// NormalizerFor resolves the normalizer for an engine kind. Resolution
// happens once per profile at configuration time; the returned function is
// the only thing used in the hot path.
func NormalizerFor(engine database.EngineKind) NormalizeFunc {
	switch engine {
	case database.EngineFirebird:
		return normalizeFirebird
	case database.EngineMySQL, database.EngineMariaDB:
		return normalizeMySQL
	case database.EnginePostgreSQL:
		return normalizePostgres
	default:
		return normalizeZero
	}
}

// normalizeFirebird maps MON$IO_STATS record counters; the names are
// already universal on the Firebird side.
func normalizeFirebird(delta Raw) Counters {
	return Counters{
		SeqReads: delta["seq_reads"],
		IdxReads: delta["idx_reads"],
		Inserts:  delta["inserts"],
		Updates:  delta["updates"],
		Deletes:  delta["deletes"],
	}
}

// normalizeMySQL maps Handler_% session counters. Handler_read_key plus
// Handler_read_next together approximate indexed row reads.
func normalizeMySQL(delta Raw) Counters {
	return Counters{
		SeqReads: delta["handler_read_rnd_next"],
		IdxReads: delta["handler_read_key"] + delta["handler_read_next"],
		Inserts:  delta["handler_write"],
		Updates:  delta["handler_update"],
		Deletes:  delta["handler_delete"],
	}
}

// normalizePostgres maps pg_stat_database tuple counters. tup_returned
// approximates sequential reads, tup_fetched indexed reads.
func normalizePostgres(delta Raw) Counters {
	return Counters{
		SeqReads: delta["tup_returned"],
		IdxReads: delta["tup_fetched"],
		Inserts:  delta["tup_inserted"],
		Updates:  delta["tup_updated"],
		Deletes:  delta["tup_deleted"],
	}
}

func normalizeZero(Raw) Counters {
	return Counters{}
}
