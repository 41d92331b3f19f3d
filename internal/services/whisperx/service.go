package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	langpkg "mediaworker/internal/language"
	"mediaworker/internal/logging"
	"mediaworker/internal/services"
)

const stderrTailLines = 5

// Request describes one directory transcription.
type Request struct {
	// InputDir holds the audio and video files to transcribe.
	InputDir string
	// OutputDir receives the text and metadata subdirectories. Defaults to InputDir.
	OutputDir string
	// Language is a hint; empty or "auto" lets WhisperX detect it.
	Language string
	// OnFile, when set, is called before and after each file.
	OnFile func(FileProgress)
}

// FileProgress reports per-file advancement through a directory.
type FileProgress struct {
	Index int
	Total int
	Name  string
	Done  bool
}

// Result contains the output locations of a directory transcription.
type Result struct {
	TextDir     string
	MetadataDir string
	// Language is the detected language when the hint was auto, else the hint.
	Language string
	Files    []string
}

// Option configures the service.
type Option func(*Service)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(s *Service) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithLogger routes collaborator output to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEnviron overrides the base environment handed to child processes.
func WithEnviron(environ func() []string) Option {
	return func(s *Service) {
		if environ != nil {
			s.environ = environ
		}
	}
}

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg     Config
	exec    services.Executor
	logger  *slog.Logger
	environ func() []string
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		exec:    services.CommandExecutor{},
		logger:  logging.NewNop(),
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// TranscribeDir transcribes every audio or video file directly inside
// req.InputDir. Each clip yields one text file with a line per segment in the
// text directory; raw WhisperX outputs land in the metadata directory.
func (s *Service) TranscribeDir(ctx context.Context, req Request) (Result, error) {
	var result Result

	inputDir, err := filepath.Abs(strings.TrimSpace(req.InputDir))
	if err != nil || strings.TrimSpace(req.InputDir) == "" {
		return result, errors.New("input directory required")
	}
	info, err := os.Stat(inputDir)
	if err != nil {
		return result, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("input directory: %s is not a directory", inputDir)
	}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = inputDir
	}
	result.TextDir = filepath.Join(outputDir, TextDirName)
	result.MetadataDir = filepath.Join(outputDir, MetadataDirName)
	for _, dir := range []string{result.TextDir, result.MetadataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, fmt.Errorf("ensure output dir: %w", err)
		}
	}

	hint := langpkg.ToISO2(req.Language)
	result.Language = langpkg.Auto
	if hint != "" {
		result.Language = hint
	}

	files, err := findMediaFiles(inputDir)
	if err != nil {
		return result, err
	}
	s.logger.Info("transcription inputs located",
		logging.String("input_dir", inputDir),
		logging.Int("files", len(files)),
		logging.String("model", s.Model()),
	)

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if req.OnFile != nil {
			req.OnFile(FileProgress{Index: i, Total: len(files), Name: name})
		}
		detected, err := s.transcribeFile(ctx, filepath.Join(inputDir, name), result.TextDir, result.MetadataDir, hint)
		if err != nil {
			return result, fmt.Errorf("transcribe %s: %w", name, err)
		}
		if hint == "" && result.Language == langpkg.Auto && detected != "" {
			result.Language = detected
		}
		result.Files = append(result.Files, name)
		if req.OnFile != nil {
			req.OnFile(FileProgress{Index: i, Total: len(files), Name: name, Done: true})
		}
	}

	return result, nil
}

func (s *Service) transcribeFile(ctx context.Context, source, textDir, metadataDir, language string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	audio := source
	if isVideo(source) {
		audioDir := filepath.Join(metadataDir, audioDirName)
		if err := os.MkdirAll(audioDir, 0o755); err != nil {
			return "", fmt.Errorf("ensure audio dir: %w", err)
		}
		audio = filepath.Join(audioDir, base+".wav")
		if err := s.extractAudio(ctx, source, audio); err != nil {
			return "", err
		}
	}

	tail := newLineTail(stderrTailLines)
	cmd := services.Command{
		Binary: s.command(),
		Args:   s.buildArgs(audio, metadataDir, language),
		Env:    s.childEnv(),
	}
	err := s.exec.Run(ctx, cmd, func(line string) {
		s.logger.Debug("whisperx output", logging.String("line", line))
	}, func(line string) {
		if s.quiet(line) {
			return
		}
		tail.add(line)
		s.logger.Debug("whisperx diagnostic", logging.String("line", line))
	})
	if err != nil {
		return "", fmt.Errorf("whisperx: %w%s", err, tail.suffix())
	}

	transcript, err := LoadTranscript(filepath.Join(metadataDir, base+".json"))
	if err != nil {
		return "", fmt.Errorf("load whisperx output: %w", err)
	}
	if err := writeTextFile(filepath.Join(textDir, base+".txt"), transcript.Segments); err != nil {
		return "", err
	}
	return langpkg.ToISO2(transcript.Language), nil
}

func (s *Service) command() string {
	if s.cfg.Command != "" {
		return s.cfg.Command
	}
	return UVXCommand
}

func (s *Service) ffmpegBinary() string {
	if s.cfg.FFmpegBinary != "" {
		return s.cfg.FFmpegBinary
	}
	return FFmpegCommand
}

// childEnv returns the environment for the WhisperX process only.
func (s *Service) childEnv() []string {
	maxTokens := s.cfg.MaxNewTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxNewTokens
	}
	env := append([]string(nil), s.environ()...)
	env = append(env,
		"WHISPER_MAX_NEW_TOKENS="+strconv.Itoa(maxTokens),
		"PYTHONWARNINGS=ignore",
		// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
		"TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1",
	)
	if s.cfg.CPUFallback {
		env = append(env, "PYTORCH_ENABLE_MPS_FALLBACK=1")
	}
	for _, name := range s.cfg.QuietLoggers {
		if name == "transformers" {
			env = append(env, "TRANSFORMERS_VERBOSITY=error")
			break
		}
	}
	return env
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	chunkLength := s.cfg.ChunkLength
	if chunkLength <= 0 {
		chunkLength = DefaultChunkLength
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", strconv.Itoa(chunkLength),
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// quiet reports whether a Python logging line ("LEVEL:logger:msg") comes from
// a quieted logger below ERROR.
func (s *Service) quiet(line string) bool {
	level, rest, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return false
	}
	switch level {
	case "DEBUG", "INFO", "WARNING":
	default:
		return false
	}
	for _, name := range s.cfg.QuietLoggers {
		if rest == name || strings.HasPrefix(rest, name+":") || strings.HasPrefix(rest, name+".") {
			return true
		}
	}
	return false
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the subset of WhisperX JSON output the service consumes.
type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// LoadTranscript loads a WhisperX JSON output file.
func LoadTranscript(jsonPath string) (Transcript, error) {
	var transcript Transcript
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return transcript, err
	}
	if err := json.Unmarshal(data, &transcript); err != nil {
		return transcript, fmt.Errorf("parse whisperx json: %w", err)
	}
	return transcript, nil
}

func writeTextFile(path string, segments []Segment) error {
	var b strings.Builder
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func findMediaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isAudio(entry.Name()) || isVideo(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func isAudio(name string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func isVideo(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
