package report

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/querybench/querybench/pkg/analysis"
	"github.com/querybench/querybench/pkg/sysinfo"
)

// Manifest describes one benchmark pass. It is written next to the raw
// CSV so a result directory stays interpretable on its own.
type Manifest struct {
	Query      string            `yaml:"query"`
	StartedAt  time.Time         `yaml:"started_at"`
	FinishedAt time.Time         `yaml:"finished_at"`
	Servers    []ManifestServer  `yaml:"servers"`
	System     *sysinfo.Snapshot `yaml:"system,omitempty"`
	Verdict    *ManifestVerdict  `yaml:"verdict,omitempty"`
}

// ManifestServer identifies one benchmarked server.
type ManifestServer struct {
	ID     string `yaml:"id"`
	Engine string `yaml:"engine"`
	OSType string `yaml:"os_type"`
	Host   string `yaml:"host"`
}

// ManifestVerdict summarizes the recommendation for the primary field.
type ManifestVerdict struct {
	Conclusive bool   `yaml:"conclusive"`
	Winner     string `yaml:"winner,omitempty"`
	RunnerUp   string `yaml:"runner_up,omitempty"`
	Reason     string `yaml:"reason"`
}

// VerdictFromReport extracts the primary field's recommendation.
func VerdictFromReport(rep *analysis.Report) *ManifestVerdict {
	if rep == nil {
		return nil
	}

	return &ManifestVerdict{
		Conclusive: rep.Recommendation.Conclusive,
		Winner:     rep.Recommendation.Winner,
		RunnerUp:   rep.Recommendation.RunnerUp,
		Reason:     rep.Recommendation.Reason,
	}
}

// WriteManifest marshals the manifest to YAML at the given path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	return nil
}
