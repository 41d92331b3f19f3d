package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

const maxToolLineBytes = 4 << 20

// Command describes one external tool invocation.
type Command struct {
	Binary string
	Args   []string
	// Env, when non-empty, replaces the child environment entirely.
	Env []string
	Dir string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, cmd Command, onStdout, onStderr func(string)) error
}

// CommandExecutor runs commands with os/exec and streams both pipes line by line.
type CommandExecutor struct{}

// Run starts cmd and forwards each output line to the matching callback. Nil
// callbacks discard the stream.
func (CommandExecutor) Run(ctx context.Context, command Command, onStdout, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, command.Binary, command.Args...) //nolint:gosec
	if len(command.Env) > 0 {
		cmd.Env = command.Env
	}
	cmd.Dir = command.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", command.Binary, err)
	}

	var group errgroup.Group
	group.Go(func() error { return scanLines(stdout, onStdout) })
	group.Go(func() error { return scanLines(stderr, onStderr) })

	if scanErr := group.Wait(); scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait %s: %w", command.Binary, err)
	}
	return nil
}

func scanLines(r io.Reader, forward func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxToolLineBytes)
	for scanner.Scan() {
		if forward != nil {
			forward(scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep draining so the tool never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
