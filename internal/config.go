package internal

import (
	"cursed-archive/domain"
	"fmt"
	"net"
	"strconv"
	"time"
)

// messageOverhead leaves room for the path and counters next to the payload
const messageOverhead = 64 * domain.KB

type Config struct {
	Host               string `env:"HOST,default=127.0.0.1"`
	Port               int    `env:"PORT,default=50051"`
	UploadRoot         string `env:"UPLOAD_ROOT,default=uploads"`
	ProgressBufferSize int    `env:"PROGRESS_BUFFER_SIZE,default=128"`
	MaxChunkSizeKB     int    `env:"MAX_CHUNK_SIZE_KB,default=3072"`

	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	JournalRetention  time.Duration `env:"JOURNAL_RETENTION,default=168h"`
	JournalGCInterval time.Duration `env:"JOURNAL_GC_INTERVAL,default=10m"`

	DiskCheckInterval    time.Duration `env:"DISK_CHECK_INTERVAL,default=1m"`
	DiskUsageWarnPercent float64       `env:"DISK_USAGE_WARN_PERCENT,default=90"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=5s"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MaxRecvMsgSize is the largest chunk message the server accepts.
func (c Config) MaxRecvMsgSize() int {
	return c.MaxChunkSizeKB*domain.KB + messageOverhead
}

func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("PORT must be in 1..65535, got %d", c.Port)
	case c.UploadRoot == "":
		return fmt.Errorf("UPLOAD_ROOT must not be empty")
	case c.ProgressBufferSize <= 0:
		return fmt.Errorf("PROGRESS_BUFFER_SIZE must be positive, got %d", c.ProgressBufferSize)
	case c.MaxChunkSizeKB <= 0:
		return fmt.Errorf("MAX_CHUNK_SIZE_KB must be positive, got %d", c.MaxChunkSizeKB)
	case c.JournalGCInterval <= 0 || c.DiskCheckInterval <= 0 || c.HeartbeatInterval <= 0:
		return fmt.Errorf("JOURNAL_GC_INTERVAL, DISK_CHECK_INTERVAL and HEARTBEAT_INTERVAL must be positive")
	case c.DiskUsageWarnPercent <= 0 || c.DiskUsageWarnPercent > 100:
		return fmt.Errorf("DISK_USAGE_WARN_PERCENT must be in (0, 100], got %.1f", c.DiskUsageWarnPercent)
	}
	return nil
}
