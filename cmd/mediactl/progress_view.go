package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mediaworker/internal/logging"
	"mediaworker/internal/progress"
	"mediaworker/internal/services"
	"mediaworker/internal/supervisor"
)

// progressView renders worker progress as a single rewritten line on a
// terminal and as sampled log entries otherwise.
type progressView struct {
	mu      sync.Mutex
	w       io.Writer
	live    bool
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	width   int
}

func newProgressView(w io.Writer, logger *slog.Logger) *progressView {
	return &progressView{
		w:       w,
		live:    shouldColorize(w),
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: logging.NewProgressSampler(5),
	}
}

func (v *progressView) Update(job supervisor.Job, sample progress.Sample) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.live {
		line := formatProgress(job.Kind, sample)
		fmt.Fprintf(v.w, "\r%-*s", v.width, line)
		v.width = max(v.width, len(line))
		return
	}
	if v.sampler.ShouldLog(sample.Percent, job.ID) {
		v.logger.Info("worker progress",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobKind, job.Kind),
			logging.Float64("percent", sample.Percent),
			logging.String("speed", sample.SpeedText),
			logging.Duration("eta", sample.ETA),
			logging.Duration("elapsed", sample.Elapsed),
		)
	}
}

func (v *progressView) Diagnostic(job supervisor.Job, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.live && v.width > 0 {
		fmt.Fprintf(v.w, "\r%-*s\r", v.width, "")
	}
	attrs := logging.Args(
		logging.String(logging.FieldJobID, job.ID),
		logging.String("line", line),
	)
	if services.IsDiagnostic(line) {
		v.logger.Warn("worker reported error", attrs...)
		return
	}
	v.logger.Debug("worker output", attrs...)
}

// Finish terminates the live line so later output starts on a fresh line.
func (v *progressView) Finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.live && v.width > 0 {
		fmt.Fprintln(v.w)
		v.width = 0
	}
	v.sampler.Reset()
}

func formatProgress(kind string, s progress.Sample) string {
	speed := s.SpeedText
	if speed == "" {
		speed = progress.SpeedUnknown
	}
	return fmt.Sprintf("%s %5.1f%%  %s  eta %s  elapsed %s",
		kind, s.Percent, speed, s.ETA.Round(time.Second), s.Elapsed.Round(time.Second))
}
