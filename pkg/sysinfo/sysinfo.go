// Package sysinfo captures a snapshot of the client machine so results
// record where the benchmark ran.
package sysinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/sirupsen/logrus"
)

// Snapshot describes the machine driving the benchmark. The client's own
// load affects the latency share of every timing, so it belongs in the
// result record.
type Snapshot struct {
	Hostname        string `json:"hostname" yaml:"hostname"`
	OS              string `json:"os" yaml:"os"`
	Platform        string `json:"platform" yaml:"platform"`
	PlatformVersion string `json:"platform_version" yaml:"platform_version"`
	KernelVersion   string `json:"kernel_version" yaml:"kernel_version"`
	Arch            string `json:"arch" yaml:"arch"`

	CPUModel    string `json:"cpu_model" yaml:"cpu_model"`
	CPUCores    int    `json:"cpu_cores" yaml:"cpu_cores"`
	MemoryTotal uint64 `json:"memory_total_bytes" yaml:"memory_total_bytes"`

	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Collector gathers the snapshot.
type Collector interface {
	Collect(ctx context.Context) *Snapshot
}

type collector struct {
	log logrus.FieldLogger
}

// Ensure interface compliance.
var _ Collector = (*collector)(nil)

// NewCollector creates a system info collector.
func NewCollector(log logrus.FieldLogger) Collector {
	return &collector{
		log: log.WithField("component", "sysinfo"),
	}
}

// Collect reads what it can and leaves the rest zero. Probe failures are
// logged, never fatal; a partial snapshot beats no snapshot.
func (c *collector) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		c.log.WithError(err).Debug("Host info probe failed")
	} else {
		snap.Hostname = info.Hostname
		snap.OS = info.OS
		snap.Platform = info.Platform
		snap.PlatformVersion = info.PlatformVersion
		snap.KernelVersion = info.KernelVersion
	}

	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		c.log.WithError(err).Debug("CPU info probe failed")
	} else if len(infos) > 0 {
		snap.CPUModel = infos[0].ModelName
	}

	if counts, err := cpu.CountsWithContext(ctx, true); err != nil {
		c.log.WithError(err).Debug("CPU count probe failed")
	} else {
		snap.CPUCores = counts
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		c.log.WithError(err).Debug("Memory probe failed")
	} else {
		snap.MemoryTotal = vm.Total
	}

	return snap
}
