// Package whisperx runs WhisperX over a directory of recordings.
//
// This package handles:
//   - Audio extraction from video containers via ffmpeg
//   - WhisperX invocation through uvx with an explicit child environment
//   - Per-clip text files and language detection from WhisperX JSON output
//
// Configuration options (model, chunk length, token bound, CUDA, VAD method)
// are passed via Config.
package whisperx
