package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediaworker/internal/framing"
	"mediaworker/internal/language"
	"mediaworker/internal/logging"
	"mediaworker/internal/progress"
	"mediaworker/internal/services"
	"mediaworker/internal/services/whisperx"
	"mediaworker/internal/workspace"
)

func (h *Harness) setup(ctx context.Context, _ []string, out *framing.Framer, _ *progress.Encoder) error {
	// A parent-assigned job ID names the workspace so the parent can clean up
	// after a worker it had to kill.
	jobID, _ := services.JobIDFromContext(ctx)
	ws, err := workspace.CreateWithID(h.cfg.WorkspaceRoot, jobID)
	if err != nil {
		return err
	}
	logging.WithContext(services.WithJobID(ctx, ws.ID), h.logger).Info("workspace created",
		logging.String("workspace", ws.Dir),
	)
	return emit(KindSetup, out, framing.Record{
		"input_dir":  ws.InputDir,
		"output_dir": ws.OutputDir,
		"workspace":  ws.Dir,
		"job_id":     ws.ID,
	})
}

func (h *Harness) download(ctx context.Context, args []string, out *framing.Framer, enc *progress.Encoder) error {
	if len(args) < 2 {
		return services.Wrap(services.ErrArgument, "download", "", "Missing arguments for download", nil)
	}
	if h.deps.Downloader == nil {
		return services.Wrap(services.ErrCollaborator, "download", "", "downloader unavailable", nil)
	}
	outputPath, url := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	if outputPath == "" || url == "" {
		return services.Wrap(services.ErrArgument, "download", "", "output path and url must not be empty", nil)
	}
	// The record and diagnostics carry the path as supplied.
	target := outputPath
	if abs, err := filepath.Abs(outputPath); err == nil {
		target = abs
	}

	_, release, err := claimEnclosing(target)
	if err != nil {
		return err
	}
	defer release()

	h.logger.Info("download started", logging.String("url", url), logging.String("file", target))
	if err := h.deps.Downloader.Download(ctx, url, target, enc.Callback()); err != nil {
		return services.Wrap(services.ErrCollaborator, "download", "", "download failed", err)
	}

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return services.Wrap(services.ErrCollaborator, "download", "", "No output file found at "+outputPath, nil)
	}

	return emit(KindDownload, out, framing.Record{
		"success": true,
		"file":    outputPath,
	})
}

func (h *Harness) transcribe(ctx context.Context, args []string, out *framing.Framer, enc *progress.Encoder) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return services.Wrap(services.ErrArgument, "transcribe", "", "Missing input directory for transcribe", nil)
	}
	if h.deps.Transcriber == nil {
		return services.Wrap(services.ErrCollaborator, "transcribe", "", "transcriber unavailable", nil)
	}
	inputDir := strings.TrimSpace(args[0])
	if abs, err := filepath.Abs(inputDir); err == nil {
		inputDir = abs
	}

	hint := h.cfg.DefaultLanguage
	if len(args) > 1 {
		hint = args[1]
	}
	lang, err := language.NormalizeHint(hint)
	if err != nil {
		return services.Wrap(services.ErrArgument, "transcribe", "", "invalid language", err)
	}

	fmt.Fprintf(h.deps.Stderr, "Starting transcription for directory: %s\n", inputDir)
	fmt.Fprintf(h.deps.Stderr, "Source language: %s\n", language.DisplayName(lang))

	ws, release, err := claimEnclosing(inputDir)
	if err != nil {
		return err
	}
	defer release()

	req := whisperx.Request{
		InputDir: inputDir,
		Language: lang,
		OnFile: func(p whisperx.FileProgress) {
			done := p.Index
			if p.Done {
				done++
			}
			_, _ = enc.Encode(progress.Tick{Downloaded: int64(done), Total: int64(p.Total)})
		},
	}
	if ws != nil && inputDir == ws.InputDir {
		req.OutputDir = ws.OutputDir
	}

	result, err := h.deps.Transcriber.TranscribeDir(ctx, req)
	if err != nil {
		return services.Wrap(services.ErrCollaborator, "transcribe", "", "transcription failed", err)
	}

	return emit(KindTranscribe, out, framing.Record{
		"text_output_dir":     result.TextDir,
		"metadata_output_dir": result.MetadataDir,
		"detected_language":   result.Language,
	})
}

// claimEnclosing takes the owner lock of the workspace containing path, if
// any. The returned release func is always safe to call.
func claimEnclosing(path string) (*workspace.Workspace, func(), error) {
	noop := func() {}
	dir, ok := workspace.Locate(path)
	if !ok {
		return nil, noop, nil
	}
	ws, err := workspace.Open(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, noop, nil
		}
		return nil, noop, err
	}
	if err := ws.Claim(); err != nil {
		return nil, noop, err
	}
	return ws, func() { _ = ws.Release() }, nil
}
