package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"mediaworker/internal/config"
	"mediaworker/internal/deps"
	"mediaworker/internal/services/whisperx"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the worker drives plus the
// worker executable itself.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Download.Binary,
			Description: "Required for download jobs",
		},
		{
			Name:        "uvx",
			Command:     cfg.Transcription.Command,
			Description: "Required for WhisperX-driven transcription",
		},
		{
			Name:        "FFmpeg",
			Command:     whisperx.FFmpegCommand,
			Description: "Extracts audio from video before transcription",
			Optional:    true,
		},
	}
	statuses := deps.CheckBinaries(requirements)
	return append(statuses, deps.CheckWorker(cfg.Worker.Binary))
}
