package policy

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/shirou/gopsutil/v3/disk"
)

// StorageGate lets the sweep run only when a watched path runs low on free space.
type StorageGate struct {
	cfg   *config.StorageGateConfig
	usage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

var _ Policy = (*StorageGate)(nil)

// NewStorageGate creates a new storage gate.
func NewStorageGate(cfg *config.StorageGateConfig) *StorageGate {
	return &StorageGate{
		cfg:   cfg,
		usage: disk.UsageWithContext,
	}
}

func (p *StorageGate) Name() string {
	return "storage_gate"
}

// ShouldTriggerSweep returns true when any path has less free space than the threshold.
// Paths whose usage cannot be read are skipped. If no path can be read, the sweep does not run.
func (p *StorageGate) ShouldTriggerSweep(ctx context.Context) (bool, error) {
	if p.cfg == nil || p.cfg.MinFreeGB <= 0 {
		return true, nil
	}

	threshold := uint64(p.cfg.MinFreeGB * humanize.GByte)
	var readable int

	for _, path := range p.cfg.Paths {
		usage, err := p.usage(ctx, path)
		if err != nil {
			log.Error("failed to get disk usage", "path", path, "error", err)
			continue
		}
		readable++

		if usage.Free < threshold {
			log.Info("Free space below threshold, sweep enabled",
				"path", path,
				"free", humanize.Bytes(usage.Free),
				"threshold", humanize.Bytes(threshold),
			)
			return true, nil
		}
		log.Debug("Free space above threshold",
			"path", path,
			"free", humanize.Bytes(usage.Free),
			"threshold", humanize.Bytes(threshold),
		)
	}

	if readable == 0 {
		log.Warn("Could not determine free space of any storage gate path, skipping sweep")
	}
	return false, nil
}
