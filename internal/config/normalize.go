package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWorker(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeTranscription()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		c.Paths.WorkspaceRoot = defaultWorkspaceRoot()
	}
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorker() error {
	c.Worker.Binary = strings.TrimSpace(c.Worker.Binary)
	if strings.ContainsRune(c.Worker.Binary, '/') {
		expanded, err := expandPath(c.Worker.Binary)
		if err != nil {
			return fmt.Errorf("worker.binary: %w", err)
		}
		c.Worker.Binary = expanded
	}
	if c.Worker.ChunkSize == 0 {
		c.Worker.ChunkSize = defaultChunkSize
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultDownloadBinary
	}
	c.Download.Format = strings.TrimSpace(c.Download.Format)
	if c.Download.Format == "" {
		c.Download.Format = defaultDownloadFormat
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Command = strings.TrimSpace(t.Command)
	if t.Command == "" {
		t.Command = defaultTranscribeCommand
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultTranscribeModel
	}
	if t.ChunkLength == 0 {
		t.ChunkLength = defaultChunkLength
	}
	if t.MaxNewTokens == 0 {
		t.MaxNewTokens = defaultMaxNewTokens
	}
	t.VADMethod = strings.ToLower(strings.TrimSpace(t.VADMethod))
	if t.VADMethod == "" {
		t.VADMethod = defaultVADMethod
	}
	t.HFToken = strings.TrimSpace(t.HFToken)
	t.DefaultLanguage = strings.TrimSpace(t.DefaultLanguage)
	if t.DefaultLanguage == "" {
		t.DefaultLanguage = defaultLanguage
	}
	loggers := t.QuietLoggers[:0]
	for _, name := range t.QuietLoggers {
		if name = strings.TrimSpace(name); name != "" {
			loggers = append(loggers, name)
		}
	}
	t.QuietLoggers = loggers
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
