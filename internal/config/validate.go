package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.ChunkSize < 0 {
		return errors.New("worker.chunk_size must be positive")
	}
	if c.Worker.ReadTimeout < 0 {
		return errors.New("worker.read_timeout must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.Timeout < 0 {
		return errors.New("download.timeout must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if t.ChunkLength < 0 {
		return errors.New("transcription.chunk_length must be positive")
	}
	if t.MaxNewTokens < 0 {
		return errors.New("transcription.max_new_tokens must be positive")
	}
	switch t.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method: unsupported value %q (use silero or pyannote)", t.VADMethod)
	}
	if t.VADMethod == "pyannote" && strings.TrimSpace(t.HFToken) == "" {
		return errors.New("transcription.hf_token must be set when vad_method is pyannote")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
