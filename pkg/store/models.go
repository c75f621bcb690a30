package store

import (
	"time"
)

// Pass is one benchmark invocation over the configured servers.
type Pass struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Query       string    `gorm:"not null" json:"query"`
	Repetitions int       `json:"repetitions"`
	Concurrency int       `json:"concurrency"`
	Hostname    string    `json:"hostname"`
	StartedAt   time.Time `gorm:"not null" json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	// SystemJSON is the serialized host snapshot of the machine that
	// drove the pass.
	SystemJSON string `json:"system_json"`

	// Recommendation is the analysis verdict for the deciding field.
	Conclusive     bool   `json:"conclusive"`
	Winner         string `json:"winner"`
	Recommendation string `json:"recommendation"`

	Runs []Run `gorm:"constraint:OnDelete:CASCADE" json:"runs,omitempty"`
}

// Run is one executed repetition within a pass. Timing columns hold
// seconds; a non-empty Error marks a failed run whose timings are zero.
type Run struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	PassID uint `gorm:"index;not null" json:"pass_id"`

	ServerID string `gorm:"index;not null" json:"server_id"`
	Engine   string `gorm:"not null" json:"engine"`
	OSType   string `gorm:"not null" json:"os_type"`
	RunIndex int    `gorm:"not null" json:"run_index"`

	ElapsedTotalSec  float64 `json:"elapsed_total_seconds"`
	ElapsedServerSec float64 `json:"elapsed_server_seconds"`
	LatencySec       float64 `json:"latency_seconds"`

	SeqReads int64 `json:"seq_reads"`
	IdxReads int64 `json:"idx_reads"`
	Inserts  int64 `json:"inserts"`
	Updates  int64 `json:"updates"`
	Deletes  int64 `json:"deletes"`

	Plan     string `json:"plan"`
	RowCount int64  `json:"rowcount"`
	Error    string `json:"error"`
}
