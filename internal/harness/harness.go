package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mediaworker/internal/framing"
	"mediaworker/internal/logging"
	"mediaworker/internal/progress"
	"mediaworker/internal/services"
	"mediaworker/internal/services/whisperx"
)

// JobKind names one of the worker's jobs.
type JobKind string

const (
	KindSetup      JobKind = "setup"
	KindDownload   JobKind = "download"
	KindTranscribe JobKind = "transcribe"
)

// Kinds lists the supported job kinds in CLI order.
func Kinds() []JobKind {
	return []JobKind{KindSetup, KindDownload, KindTranscribe}
}

// ParseKind validates a job kind name.
func ParseKind(value string) (JobKind, error) {
	kind := JobKind(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Kinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", services.Wrap(services.ErrArgument, "", "", fmt.Sprintf("unknown job kind %q", value), nil)
}

// ExitStatus is the process exit code reported by a job.
type ExitStatus int

const (
	ExitSuccess  ExitStatus = services.ExitSuccess
	ExitFailure  ExitStatus = services.ExitFailure
	ExitArgument ExitStatus = services.ExitArgument
)

// Downloader fetches one URL to a destination file.
type Downloader interface {
	Download(ctx context.Context, url, outputPath string, onProgress func(progress.Tick)) error
}

// Transcriber transcribes every recording in a directory.
type Transcriber interface {
	TranscribeDir(ctx context.Context, req whisperx.Request) (whisperx.Result, error)
}

// Config holds the job settings taken from the worker configuration.
type Config struct {
	WorkspaceRoot   string
	ChunkSize       int
	DefaultLanguage string
}

// Dependencies supplies collaborators and channels. Nil writers fall back to
// the process stdout and stderr.
type Dependencies struct {
	Downloader  Downloader
	Transcriber Transcriber
	Logger      *slog.Logger
	Stdout      io.Writer
	Stderr      io.Writer
}

type jobFunc func(ctx context.Context, args []string, out *framing.Framer, enc *progress.Encoder) error

// Harness runs exactly one job per worker process and owns both channels.
type Harness struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger
	jobs   map[JobKind]jobFunc
}

// New constructs a harness.
func New(cfg Config, deps Dependencies) *Harness {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = framing.DefaultChunkSize
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	h := &Harness{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "harness"),
	}
	h.jobs = map[JobKind]jobFunc{
		KindSetup:      h.setup,
		KindDownload:   h.download,
		KindTranscribe: h.transcribe,
	}
	return h
}

// Run executes one job and returns the exit status. A frame on stdout and a
// zero status always go together; every failure ends with one "Error:" line
// on stderr.
func (h *Harness) Run(ctx context.Context, kind JobKind, args []string) ExitStatus {
	ctx = services.WithJobKind(ctx, string(kind))
	logger := logging.WithContext(ctx, h.logger)

	framer := h.newFramer(kind)
	err := h.runJob(ctx, kind, args, framer)
	if err == nil && !framer.Emitted() {
		err = services.Wrap(services.ErrProtocol, string(kind), "", "job finished without emitting a result", nil)
	}
	if err == nil {
		logger.Info("job completed", logging.Int("exit_code", int(ExitSuccess)))
		return ExitSuccess
	}

	status := ExitStatus(services.ExitCode(err))
	logger.Error("job failed", logging.Error(err), logging.Int("exit_code", int(status)))
	fmt.Fprintln(h.deps.Stderr, services.Diagnostic(err))
	return status
}

func (h *Harness) runJob(ctx context.Context, kind JobKind, args []string, framer *framing.Framer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrCollaborator, string(kind), "", fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	job, ok := h.jobs[kind]
	if !ok {
		return services.Wrap(services.ErrArgument, "", "", fmt.Sprintf("unknown job kind %q", kind), nil)
	}
	enc := progress.NewEncoder(h.deps.Stderr)
	return job(ctx, args, framer, enc)
}

func (h *Harness) newFramer(kind JobKind) *framing.Framer {
	if kind == KindSetup {
		return framing.NewFramer(h.deps.Stdout, framing.WithSingleLine())
	}
	return framing.NewFramer(h.deps.Stdout, framing.WithChunkSize(h.cfg.ChunkSize))
}

// emit writes the job's record. Serialization and write failures are fatal.
func emit(kind JobKind, out *framing.Framer, record framing.Record) error {
	if err := out.Emit(record); err != nil {
		if errors.Is(err, framing.ErrFrameAlreadyEmitted) {
			return services.Wrap(services.ErrProtocol, string(kind), "emit result", "", err)
		}
		return services.Wrap(services.ErrCollaborator, string(kind), "emit result", "", err)
	}
	return nil
}
