package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mediaworker/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one worker invocation and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if id := strings.TrimSpace(os.Getenv(services.JobIDEnv)); id != "" {
		ctx = services.WithJobID(ctx, id)
	}

	status := services.ExitSuccess
	root := newRootCommand(&status, stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		writeDiagnostic(stderr, err)
		return services.ExitArgument
	}
	return status
}

func writeDiagnostic(w io.Writer, err error) {
	_, _ = io.WriteString(w, services.Diagnostic(err)+"\n")
}
