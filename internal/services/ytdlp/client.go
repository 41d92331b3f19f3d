package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"mediaworker/internal/logging"
	"mediaworker/internal/progress"
	"mediaworker/internal/services"
)

// progressMarker prefixes the machine-readable progress lines requested from yt-dlp.
const progressMarker = "MEDIAWORKER_TICK"

const progressTemplate = "download:" + progressMarker +
	" %(progress.downloaded_bytes)s" +
	" %(progress.total_bytes)s" +
	" %(progress.total_bytes_estimate)s" +
	" %(progress.speed)s" +
	" %(progress.eta)s" +
	" %(progress.elapsed)s"

// Defaults applied when Options leave a field empty.
const (
	DefaultBinary = "yt-dlp"
	DefaultFormat = "best"
)

// Options configures the yt-dlp invocation.
type Options struct {
	Binary string
	Format string
	// Timeout bounds one download; zero disables it.
	Timeout time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger routes yt-dlp chatter to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	opts   Options
	exec   services.Executor
	logger *slog.Logger
}

// New constructs a yt-dlp client.
func New(opts Options, options ...Option) *Client {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = DefaultBinary
	}
	if strings.TrimSpace(opts.Format) == "" {
		opts.Format = DefaultFormat
	}
	client := &Client{
		opts:   opts,
		exec:   services.CommandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// Download runs yt-dlp for url, writing to outputPath. onProgress receives one
// Tick per progress line yt-dlp reports.
func (c *Client) Download(ctx context.Context, url, outputPath string, onProgress func(progress.Tick)) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("download url required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	runCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var mu sync.Mutex
	var lastErr string
	handle := c.lineHandler(onProgress, &mu, &lastErr)
	cmd := services.Command{Binary: c.opts.Binary, Args: c.buildArgs(url, outputPath)}
	if runError := c.exec.Run(runCtx, cmd, handle, handle); runError != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("yt-dlp: %w after %s", services.ErrTimeout, c.opts.Timeout)
		}
		mu.Lock()
		detail := lastErr
		mu.Unlock()
		if detail != "" {
			return fmt.Errorf("yt-dlp: %w: %s", runError, detail)
		}
		return fmt.Errorf("yt-dlp: %w", runError)
	}
	return nil
}

func (c *Client) lineHandler(onProgress func(progress.Tick), mu *sync.Mutex, lastErr *string) func(string) {
	return func(line string) {
		if tick, ok := parseTick(line); ok {
			if onProgress != nil {
				mu.Lock()
				onProgress(tick)
				mu.Unlock()
			}
			return
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return
		}
		if strings.HasPrefix(trimmed, "ERROR:") {
			mu.Lock()
			*lastErr = strings.TrimSpace(strings.TrimPrefix(trimmed, "ERROR:"))
			mu.Unlock()
		}
		c.logger.Debug("yt-dlp output", logging.String("line", trimmed))
	}
}

func (c *Client) buildArgs(url, outputPath string) []string {
	return []string{
		"-f", c.opts.Format,
		"-o", escapeTemplate(outputPath),
		"--no-playlist",
		"--no-part",
		"--quiet",
		"--no-warnings",
		"--progress",
		"--newline",
		"--progress-template", progressTemplate,
		"--",
		url,
	}
}

// escapeTemplate keeps yt-dlp from expanding %(...)s fields in a literal path.
func escapeTemplate(path string) string {
	return strings.ReplaceAll(path, "%", "%%")
}

// parseTick decodes a progress line produced by progressTemplate. yt-dlp
// renders missing values as "NA" or "None".
func parseTick(line string) (progress.Tick, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 7 || fields[0] != progressMarker {
		return progress.Tick{}, false
	}
	downloaded := parseFloat(fields[1])
	total := parseFloat(fields[2])
	if total <= 0 {
		total = parseFloat(fields[3])
	}
	return progress.Tick{
		Downloaded: int64(downloaded),
		Total:      int64(total),
		Speed:      parseFloat(fields[4]),
		ETA:        seconds(parseFloat(fields[5])),
		Elapsed:    seconds(parseFloat(fields[6])),
	}, true
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}
