package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mediaworker/internal/config"
	"mediaworker/internal/harness"
	"mediaworker/internal/logging"
	"mediaworker/internal/services"
	"mediaworker/internal/services/whisperx"
	"mediaworker/internal/services/ytdlp"
)

type rootOptions struct {
	configPath string
	chunkSize  int
}

func newRootCommand(status *int, stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "mediaworker",
		Short:         "Run one media job and report its result on stdout",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errors.New("a job kind is required: setup, download or transcribe")
		},
	}
	// stdout carries result frames only.
	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().IntVar(&opts.chunkSize, "chunk-size", 0, "Maximum result payload bytes per CHUNK line (0 uses the configured value)")

	rootCmd.AddCommand(
		newJobCommand(harness.KindSetup, "setup", "Create a job workspace", opts, status, stdout, stderr),
		newJobCommand(harness.KindDownload, "download <output_path> <url>", "Download a video to output_path", opts, status, stdout, stderr),
		newJobCommand(harness.KindTranscribe, "transcribe <input_dir> [language]", "Transcribe every clip in input_dir", opts, status, stdout, stderr),
	)
	return rootCmd
}

func newJobCommand(kind harness.JobKind, use, short string, opts *rootOptions, status *int, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		// The harness validates arguments so failures share its exit codes.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := logging.NewWorker(cfg, stderr)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			chunkSize := cfg.Worker.ChunkSize
			if opts.chunkSize > 0 {
				chunkSize = opts.chunkSize
			}

			h := harness.New(harness.Config{
				WorkspaceRoot:   cfg.Paths.WorkspaceRoot,
				ChunkSize:       chunkSize,
				DefaultLanguage: cfg.Transcription.DefaultLanguage,
			}, harness.Dependencies{
				Downloader:  newDownloader(cfg, logger),
				Transcriber: newTranscriber(cfg, logger),
				Logger:      logger,
				Stdout:      stdout,
				Stderr:      stderr,
			})
			ctx := services.WithJobKind(cmd.Context(), string(kind))
			*status = int(h.Run(ctx, kind, args))
			return nil
		},
	}
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.chunkSize < 0 {
		return nil, fmt.Errorf("--chunk-size must be >= 0 (got %d)", opts.chunkSize)
	}
	cfg, _, _, err := config.Load(strings.TrimSpace(opts.configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newDownloader(cfg *config.Config, logger *slog.Logger) *ytdlp.Client {
	return ytdlp.New(ytdlp.Options{
		Binary:  cfg.Download.Binary,
		Format:  cfg.Download.Format,
		Timeout: cfg.DownloadTimeout(),
	}, ytdlp.WithLogger(logger))
}

func newTranscriber(cfg *config.Config, logger *slog.Logger) *whisperx.Service {
	t := cfg.Transcription
	return whisperx.NewService(whisperx.Config{
		Command:      t.Command,
		Model:        t.Model,
		ChunkLength:  t.ChunkLength,
		MaxNewTokens: t.MaxNewTokens,
		CUDAEnabled:  t.CUDAEnabled,
		CPUFallback:  t.CPUFallback,
		VADMethod:    t.VADMethod,
		HFToken:      t.HFToken,
		QuietLoggers: t.QuietLoggers,
	}, whisperx.WithLogger(logger))
}
