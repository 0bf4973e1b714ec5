package main

import (
	"context"
	"cursed-archive/domain"
	"cursed-archive/infrastructure/grpc/client"
	"cursed-archive/ui"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultServer = "127.0.0.1:50051"

type injestOptions struct {
	Server      string
	Files       []string
	ChunkSizeKB int
	Timeout     time.Duration
	LogLevel    string
	NoProgress  bool
}

func (o injestOptions) validate() error {
	switch {
	case o.Server == "":
		return fmt.Errorf("--server is required")
	case len(o.Files) == 0:
		return fmt.Errorf("at least one file is required (--files)")
	case o.ChunkSizeKB <= 0 || o.ChunkSizeKB*domain.KB > domain.MaxChunkSize:
		return fmt.Errorf("--chunk-size-kb must be in 1..%d, got %d", domain.MaxChunkSize/domain.KB, o.ChunkSizeKB)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("INJEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "injest [files...]",
		Short: "Upload files to a cursed-archive server",
		Long: `injest streams local files to a cursed-archive server, one file at a time,
in fixed-size chunks, and reports the progress acknowledged by the server.

Every flag can also be set from the environment, e.g. INJEST_SERVER or INJEST_CHUNK_SIZE_KB.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := injestOptions{
				Server:      v.GetString("server"),
				Files:       lo.Compact(append(v.GetStringSlice("files"), args...)),
				ChunkSizeKB: v.GetInt("chunk-size-kb"),
				Timeout:     v.GetDuration("timeout"),
				LogLevel:    v.GetString("log-level"),
				NoProgress:  v.GetBool("no-progress"),
			}
			if err := opts.validate(); err != nil {
				return err
			}
			return runInjest(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringP("server", "s", defaultServer, "Address of the server (host:port)")
	flags.StringSliceP("files", "f", nil, "Files to upload, comma separated or repeated")
	flags.Int("chunk-size-kb", domain.DefaultChunkSize/domain.KB, "Size of each chunk in KiB")
	flags.Duration("timeout", 0, "Deadline of each upload, 0 means none")
	flags.String("log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	flags.Bool("no-progress", false, "Do not draw progress bars")
	_ = v.BindPFlags(flags)

	return cmd
}

// runInjest uploads every file sequentially and fails if any of them did not complete.
func runInjest(ctx context.Context, opts injestOptions, stdout, stderr io.Writer) error {
	logger := logs.GetLoggerFromString(opts.LogLevel)
	chunkSize := opts.ChunkSizeKB * domain.KB

	logger.Info("Connecting to server", "address", opts.Server)
	conn, err := grpc.NewClient(opts.Server,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(chunkSize+64*domain.KB)))
	if err != nil {
		return fmt.Errorf("failed to create client for %s: %w", opts.Server, err)
	}
	defer conn.Close()

	uploader := client.NewFileInjectClient(conn, logger, chunkSize)
	progressUI := ui.NewProgressUI(stderr, !opts.NoProgress)

	results := make([]ui.Result, 0, len(opts.Files))
	for _, path := range opts.Files {
		if ctx.Err() != nil {
			break
		}
		results = append(results, uploadOne(ctx, logger, uploader, progressUI, opts.Timeout, path))
	}

	ui.RenderSummary(stdout, results)
	if failed := ui.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d upload(s) failed", failed, len(opts.Files))
	}
	if len(results) < len(opts.Files) {
		return fmt.Errorf("interrupted after %d of %d upload(s)", len(results), len(opts.Files))
	}
	return nil
}

func uploadOne(ctx context.Context, logger *slog.Logger, uploader *client.FileInjectClient, progressUI *ui.ProgressUI, timeout time.Duration, path string) ui.Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	started := false
	defer progressUI.Stop()

	last, err := uploader.UploadFile(ctx, path, func(p domain.Progress) {
		if !started {
			progressUI.Start(p.Identity.Name, p.TotalSize)
			started = true
		}
		progressUI.Update(p)
		logger.Info(fmt.Sprintf("Progress for %s: %d/%d bytes (%d%%)",
			p.Identity.Name, p.BytesReceived, p.TotalSize, int(p.Percent())))
		if p.Complete {
			logger.Info("Upload complete", "path", path, "stored_path", p.Identity.StoredPath)
		}
	})
	if err != nil {
		logger.Error("Error during upload", "path", path, "error", err)
	}
	return ui.Result{Path: path, Last: last, Duration: time.Since(start), Err: err}
}
