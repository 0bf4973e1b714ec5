package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	pb "cursed-archive/proto/archive"

	"github.com/shirou/gopsutil/process"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthSetter is the part of the gRPC health server the heartbeat drives
type HealthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// HeartbeatWorker publishes the upload service as NOT_SERVING while the upload
// root can't be used, and logs the server's own process stats.
type HeartbeatWorker struct {
	log      *slog.Logger
	health   HealthSetter
	probe    func() error
	interval time.Duration
	serving  bool
}

func NewHeartbeatWorker(log *slog.Logger, health HealthSetter, probe func() error, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:      log,
		health:   health,
		probe:    probe,
		interval: interval,
		serving:  true,
	}
}

// Run checks the upload root on every tick
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat()
			if rss, cpu, status, err := selfStats(p); err != nil {
				w.log.Debug("Failed to collect self stats", "err", err)
			} else {
				w.log.Debug("Heartbeat", "rss_bytes", rss, "cpu_percent", cpu, "status", status, "serving", w.serving)
			}
		}
	}
}

func (w *HeartbeatWorker) beat() {
	err := w.probe()
	switch {
	case err != nil && w.serving:
		w.log.Error("Upload root unavailable, service marked NOT_SERVING", "error", err)
		w.health.SetServingStatus(pb.FileInjectServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		w.serving = false
	case err == nil && !w.serving:
		w.log.Info("Upload root available again, service marked SERVING")
		w.health.SetServingStatus(pb.FileInjectServiceName, healthpb.HealthCheckResponse_SERVING)
		w.serving = true
	}
}

func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
