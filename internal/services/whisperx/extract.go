package whisperx

import (
	"context"
	"fmt"

	"mediaworker/internal/services"
)

// extractAudio converts the first audio stream of a video container into a
// mono 16kHz WAV file suitable for WhisperX.
func (s *Service) extractAudio(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	tail := newLineTail(stderrTailLines)
	err := s.exec.Run(ctx, services.Command{Binary: s.ffmpegBinary(), Args: args}, nil, tail.add)
	if err != nil {
		return fmt.Errorf("ffmpeg extract: %w%s", err, tail.suffix())
	}
	return nil
}
