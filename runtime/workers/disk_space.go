package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/disk"
)

// UsageFunc reads the usage of the filesystem holding path.
type UsageFunc func(path string) (*disk.UsageStat, error)

// DiskSpaceWorker warns when the filesystem holding the upload root fills up.
type DiskSpaceWorker struct {
	log         *slog.Logger
	path        string
	interval    time.Duration
	warnPercent float64
	usage       UsageFunc
}

func NewDiskSpaceWorker(log *slog.Logger, path string, interval time.Duration, warnPercent float64) *DiskSpaceWorker {
	return &DiskSpaceWorker{
		log:         log,
		path:        path,
		interval:    interval,
		warnPercent: warnPercent,
		usage:       disk.Usage,
	}
}

// WithUsage replaces the usage probe.
func (w *DiskSpaceWorker) WithUsage(usage UsageFunc) *DiskSpaceWorker {
	w.usage = usage
	return w
}

func (w *DiskSpaceWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

func (w *DiskSpaceWorker) check() error {
	stat, err := w.usage(w.path)
	if err != nil {
		return fmt.Errorf("failed to read disk usage of %s: %w", w.path, err)
	}
	if stat.UsedPercent >= w.warnPercent {
		w.log.Warn("Upload root is running out of space",
			"path", w.path,
			"used_percent", fmt.Sprintf("%.1f", stat.UsedPercent),
			"free_bytes", stat.Free,
			"total_bytes", stat.Total)
		return nil
	}
	w.log.Debug("Disk usage", "path", w.path, "used_percent", fmt.Sprintf("%.1f", stat.UsedPercent))
	return nil
}
