package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"mediaworker/internal/framing"
	"mediaworker/internal/logging"
	"mediaworker/internal/progress"
	"mediaworker/internal/services"
	"mediaworker/internal/workspace"
)

const (
	killReasonTimeout  = "timeout"
	killReasonCanceled = "canceled"
)

// Status classifies a finished job.
type Status string

const (
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
	StatusProtocolViolation Status = "protocol_violation"
)

// Job describes one worker invocation.
type Job struct {
	// ID defaults to a new UUID.
	ID   string
	Kind string
	Args []string
	// Workspace, when set, is removed if the worker has to be killed.
	Workspace string
}

// Outcome is the classified result of a job.
type Outcome struct {
	JobID       string
	Kind        string
	Status      Status
	ExitCode    int
	Record      framing.Record
	Diagnostics []string
	NoiseLines  int
	Samples     int
	TimedOut    bool
	Killed      bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// LastDiagnostic returns the final "Error:" line the worker printed, if any.
func (o Outcome) LastDiagnostic() string {
	if len(o.Diagnostics) == 0 {
		return ""
	}
	return o.Diagnostics[len(o.Diagnostics)-1]
}

// Runner launches worker processes and decodes their channels.
type Runner struct {
	Binary   string
	BaseArgs []string
	// Env entries are appended to the controller's environment.
	Env []string
	// ReadTimeout kills a worker that is silent on both channels this long.
	// Zero disables it.
	ReadTimeout time.Duration
	Logger      *slog.Logger
	// OnProgress receives each well-formed progress sample.
	OnProgress func(Job, progress.Sample)
	// OnDiagnostic receives every non-progress stderr line.
	OnDiagnostic func(Job, string)
}

// Run executes job to completion. The returned error is nil only for a
// succeeded outcome; otherwise it is a *JobError or *ProtocolViolation.
func (r *Runner) Run(ctx context.Context, job Job) (Outcome, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	outcome := Outcome{JobID: job.ID, Kind: job.Kind, StartedAt: time.Now(), ExitCode: -1}
	logger := logging.WithContext(
		services.WithJobKind(services.WithJobID(ctx, job.ID), job.Kind),
		logging.NewComponentLogger(r.Logger, "supervisor"),
	)

	if strings.TrimSpace(r.Binary) == "" {
		return r.finish(outcome, StatusFailed, &JobError{Kind: job.Kind, Cause: errors.New("worker binary not configured")})
	}

	args := append(append(append([]string(nil), r.BaseArgs...), job.Kind), job.Args...)
	cmd := exec.Command(r.Binary, args...) //nolint:gosec
	cmd.Env = append(append(os.Environ(), r.Env...), services.JobIDEnv+"="+job.ID)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.finish(outcome, StatusFailed, &JobError{Kind: job.Kind, Cause: fmt.Errorf("stdout pipe: %w", err)})
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return r.finish(outcome, StatusFailed, &JobError{Kind: job.Kind, Cause: fmt.Errorf("stderr pipe: %w", err)})
	}
	if err := cmd.Start(); err != nil {
		return r.finish(outcome, StatusFailed, &JobError{Kind: job.Kind, Cause: fmt.Errorf("start worker: %w", err)})
	}
	logger.Info("worker started", logging.Int("pid", cmd.Process.Pid), logging.String("binary", r.Binary))

	activity := make(chan struct{}, 1)
	touch := func() {
		select {
		case activity <- struct{}{}:
		default:
		}
	}

	killer := &groupKiller{pgid: cmd.Process.Pid, logger: logger}
	done := make(chan struct{})
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		r.watch(ctx, activity, done, killer.kill)
	}()

	dec := framing.NewDecoder()
	var diagnostics []string
	var samples int

	var group errgroup.Group
	group.Go(func() error {
		return readLines(stdout, func(line string) {
			touch()
			if err := dec.Feed(line); err != nil && errors.Is(err, framing.ErrDuplicateFrame) {
				logger.Warn("duplicate result frame on worker stdout")
			}
		})
	})
	group.Go(func() error {
		return readLines(stderr, func(line string) {
			touch()
			text := strings.TrimRight(line, "\r\n")
			sample, ok, err := progress.ParseLine(text)
			if ok {
				if err != nil {
					logger.Warn("malformed progress line", logging.String("line", text), logging.Error(err))
					return
				}
				samples++
				if r.OnProgress != nil {
					r.OnProgress(job, sample)
				}
				return
			}
			if services.IsDiagnostic(text) {
				diagnostics = append(diagnostics, strings.TrimSpace(text))
			}
			if r.OnDiagnostic != nil {
				r.OnDiagnostic(job, text)
			}
		})
	})

	readErr := group.Wait()
	waitErr := cmd.Wait()
	close(done)
	<-watchdogDone

	outcome.ExitCode = cmd.ProcessState.ExitCode()
	outcome.Diagnostics = diagnostics
	outcome.Samples = samples
	outcome.NoiseLines = dec.NoiseLines()
	outcome.TimedOut, outcome.Killed = killer.result()

	if readErr != nil {
		logger.Warn("reading worker output failed", logging.Error(readErr))
	}
	if waitErr != nil {
		logger.Debug("worker exited abnormally", logging.Error(waitErr))
	}

	if (outcome.TimedOut || outcome.Killed) && job.Workspace != "" {
		if err := workspace.Remove(job.Workspace); err != nil {
			logger.Warn("remove killed worker workspace failed", logging.String("workspace", job.Workspace), logging.Error(err))
		} else {
			logger.Info("removed killed worker workspace", logging.String("workspace", job.Workspace))
		}
	}

	status, jobErr := classify(job, &outcome, dec, ctx.Err())
	if jobErr == nil && readErr != nil {
		status, jobErr = StatusFailed, &JobError{Kind: job.Kind, ExitCode: outcome.ExitCode, Cause: readErr}
	}
	outcome, err = r.finish(outcome, status, jobErr)
	if err != nil {
		logger.Warn("worker job did not succeed", logging.String("status", string(status)), logging.Error(err))
	} else {
		logger.Info("worker job succeeded", logging.Int("noise_lines", outcome.NoiseLines))
	}
	return outcome, err
}

func (r *Runner) finish(outcome Outcome, status Status, err error) (Outcome, error) {
	outcome.Status = status
	outcome.FinishedAt = time.Now()
	return outcome, err
}

// groupKiller sends SIGKILL to a worker's process group at most once. The
// timed-out and killed flags are set only when the signal reached a live
// group, so a worker that already exited keeps its own outcome.
type groupKiller struct {
	mu       sync.Mutex
	pgid     int
	logger   *slog.Logger
	timedOut bool
	killed   bool
}

func (k *groupKiller) kill(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timedOut || k.killed {
		return
	}
	err := unix.Kill(-k.pgid, unix.SIGKILL)
	switch {
	case errors.Is(err, unix.ESRCH):
		k.logger.Debug("worker process group already gone", logging.String("reason", reason))
		return
	case err != nil:
		k.logger.Warn("kill worker process group failed", logging.String("reason", reason), logging.Error(err))
		return
	}
	k.logger.Warn("killed worker process group", logging.String("reason", reason), logging.Int("pgid", k.pgid))
	if reason == killReasonTimeout {
		k.timedOut = true
	} else {
		k.killed = true
	}
}

func (k *groupKiller) result() (timedOut, killed bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.timedOut, k.killed
}

// watch kills the worker when ctx ends or when no line arrives within the
// read timeout. It returns once done is closed.
func (r *Runner) watch(ctx context.Context, activity <-chan struct{}, done <-chan struct{}, kill func(string)) {
	var expired <-chan time.Time
	var timer *time.Timer
	if r.ReadTimeout > 0 {
		timer = time.NewTimer(r.ReadTimeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			kill(killReasonCanceled)
			<-done
			return
		case <-activity:
			if timer != nil {
				timer.Reset(r.ReadTimeout)
			}
		case <-expired:
			kill(killReasonTimeout)
			<-done
			return
		}
	}
}

func classify(job Job, outcome *Outcome, dec *framing.Decoder, ctxErr error) (Status, error) {
	record, decErr := dec.Result()
	exit := outcome.ExitCode

	switch {
	case outcome.TimedOut:
		return StatusFailed, &JobError{Kind: job.Kind, ExitCode: exit, Diagnostic: outcome.LastDiagnostic(), Cause: ErrReadTimeout}
	case outcome.Killed:
		cause := ctxErr
		if cause == nil {
			cause = errors.New("worker killed")
		}
		return StatusFailed, &JobError{Kind: job.Kind, ExitCode: exit, Diagnostic: outcome.LastDiagnostic(), Cause: cause}
	case framing.IsProtocolError(decErr):
		return StatusProtocolViolation, &ProtocolViolation{Kind: job.Kind, ExitCode: exit, Reason: "invalid result frame", Cause: decErr}
	case exit == 0 && decErr == nil:
		outcome.Record = record
		return StatusSucceeded, nil
	case exit == 0:
		return StatusProtocolViolation, &ProtocolViolation{Kind: job.Kind, ExitCode: exit, Reason: "exit 0 without a complete result frame", Cause: decErr}
	case decErr == nil:
		return StatusProtocolViolation, &ProtocolViolation{Kind: job.Kind, ExitCode: exit, Reason: "non-zero exit with a complete result frame"}
	default:
		return StatusFailed, &JobError{Kind: job.Kind, ExitCode: exit, Diagnostic: outcome.LastDiagnostic()}
	}
}

// readLines forwards every line of r, including an unterminated final line,
// without a length cap.
func readLines(r io.Reader, forward func(string)) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			forward(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
