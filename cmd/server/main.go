package main

import (
	"context"
	"cursed-archive/infrastructure/grpc/server"
	journal "cursed-archive/infrastructure/storage"
	"cursed-archive/internal"
	pb "cursed-archive/proto/archive"
	"cursed-archive/runtime/workers"
	"cursed-archive/services"
	"cursed-archive/storage"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer (badger close, listener) on the way out, main only maps the exit code.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Upload root, created up front so a bad location fails fast
	root := storage.NewUploadRoot(config.UploadRoot)
	if err := root.Ensure(); err != nil {
		return exitConfig, err
	}

	// 3. Transfer journal (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s?prefix=%s", config.DebugPort, endpoint, journal.TransferPrefix)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, journal.TransferMapper)
	}

	repository := journal.NewTransferRepository(db, logger, config.JournalRetention)
	reassembler := services.NewReassembler(logger, root, repository)

	// 4. Listener and health, bound before workers start
	errChan := make(chan error, 1)
	address := config.Address()
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(pb.FileInjectServiceName, healthpb.HealthCheckResponse_SERVING)

	// 5. Background workers
	supervisor := workers.NewSupervisor(logger, config.RestartInterval).
		Add(
			workers.NewJournalGCWorker(logger, db, config.JournalGCInterval),
			workers.NewDiskSpaceWorker(logger, root.Dir(), config.DiskCheckInterval, config.DiskUsageWarnPercent),
			workers.NewHeartbeatWorker(logger, healthServer, root.Ensure, config.HeartbeatInterval),
		)
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 6. gRPC Server Setup
	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(config.MaxRecvMsgSize()),
		grpc.ForceServerCodec(pb.Codec),
		grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(logger)),
		grpc.ChainStreamInterceptor(server.StreamLoggingInterceptor(logger)),
	)
	pb.RegisterFileInjectServiceServer(s, server.NewFileInjectServer(logger, reassembler, config.ProgressBufferSize))
	healthpb.RegisterHealthServer(s, healthServer)

	go func() {
		logger.Info("Starting gRPC server",
			"address", address,
			"upload_root", root.Dir(),
			"max_chunk_size_kb", config.MaxChunkSizeKB,
			"at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		supervisor.Stop()
		<-supervisorDone
		return exitRuntime, err
	}

	// 8. In-flight uploads finish before the journal is closed
	logger.Info("Shutting down gracefully...")
	healthServer.Shutdown()
	s.GracefulStop()
	supervisor.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}
