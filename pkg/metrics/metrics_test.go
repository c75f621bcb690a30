package metrics

import (
	"testing"

	"github.com/querybench/querybench/pkg/database"
	"github.com/stretchr/testify/assert"
)

func TestRawSub(t *testing.T) {
	before := Raw{"a": 10, "b": 5, "gone": 3}
	after := Raw{"a": 15, "b": 5, "new": 7}

	delta := after.Sub(before)

	assert.Equal(t, int64(5), delta["a"])
	assert.Equal(t, int64(0), delta["b"])
	assert.Equal(t, int64(7), delta["new"])
	assert.Equal(t, int64(-3), delta["gone"])
}

func TestNormalizerFor_Firebird(t *testing.T) {
	norm := NormalizerFor(database.EngineFirebird)

	c := norm(Raw{
		"seq_reads": 100,
		"idx_reads": 40,
		"inserts":   3,
		"updates":   2,
		"deletes":   1,
		"backouts":  9, // engine-specific extras are ignored
	})

	assert.Equal(t, Counters{SeqReads: 100, IdxReads: 40, Inserts: 3, Updates: 2, Deletes: 1}, c)
}

func TestNormalizerFor_MySQLAndMariaDB(t *testing.T) {
	raw := Raw{
		"handler_read_rnd_next": 500,
		"handler_read_key":      30,
		"handler_read_next":     12,
		"handler_write":         4,
		"handler_update":        5,
		"handler_delete":        6,
	}

	want := Counters{SeqReads: 500, IdxReads: 42, Inserts: 4, Updates: 5, Deletes: 6}

	assert.Equal(t, want, NormalizerFor(database.EngineMySQL)(raw))
	assert.Equal(t, want, NormalizerFor(database.EngineMariaDB)(raw))
}

func TestNormalizerFor_Postgres(t *testing.T) {
	norm := NormalizerFor(database.EnginePostgreSQL)

	c := norm(Raw{
		"tup_returned": 1000,
		"tup_fetched":  200,
		"tup_inserted": 10,
		"tup_updated":  20,
		"tup_deleted":  30,
		"blks_read":    999,
	})

	assert.Equal(t, Counters{SeqReads: 1000, IdxReads: 200, Inserts: 10, Updates: 20, Deletes: 30}, c)
}

func TestNormalizer_MissingCountersDefaultToZero(t *testing.T) {
	for _, engine := range []database.EngineKind{
		database.EngineFirebird,
		database.EngineMySQL,
		database.EnginePostgreSQL,
	} {
		c := NormalizerFor(engine)(Raw{})
		assert.Equal(t, Counters{}, c, "engine %s", engine)
	}
}
