package whisperx

// Config captures runtime settings for WhisperX operations. Every value the
// transcription tool sees comes from here; nothing is read from or written to
// the worker's own environment.
type Config struct {
	// Command launches WhisperX (normally uvx).
	Command string
	// FFmpegBinary extracts audio from video containers before transcription.
	FFmpegBinary string
	// Model is the WhisperX model to use (e.g., "large-v3").
	Model string
	// ChunkLength is the audio chunk length in seconds.
	ChunkLength int
	// MaxNewTokens bounds tokens generated per chunk (WHISPER_MAX_NEW_TOKENS).
	MaxNewTokens int
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// CPUFallback lets unsupported GPU ops run on the CPU (PYTORCH_ENABLE_MPS_FALLBACK).
	CPUFallback bool
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote VAD.
	HFToken string
	// QuietLoggers names Python loggers whose sub-error output is dropped.
	QuietLoggers []string
}

// WhisperX configuration constants.
const (
	DefaultModel        = "large-v3"
	DefaultChunkLength  = 30
	DefaultMaxNewTokens = 440
	CUDAIndexURL        = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL        = "https://pypi.org/simple"
	BatchSize           = "4"
	VADOnset            = "0.08"
	VADOffset           = "0.07"
	BeamSize            = "10"
	BestOf              = "10"
	Temperature         = "0.0"
	Patience            = "1.0"
	SegmentResolution   = "sentence"
	OutputFormat        = "all"
	CPUDevice           = "cpu"
	CUDADevice          = "cuda"
	CPUComputeType      = "float32"
	VADMethodPyannote   = "pyannote"
	VADMethodSilero     = "silero"
)

// Output subdirectories created under a request's output directory.
const (
	TextDirName     = "transcriptions"
	MetadataDirName = "metadata"
	audioDirName    = "audio"
)

// Command names for external tools.
const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)

var audioExtensions = map[string]struct{}{
	".aac": {}, ".flac": {}, ".m4a": {}, ".mp3": {}, ".ogg": {}, ".opus": {}, ".wav": {}, ".wma": {},
}

var videoExtensions = map[string]struct{}{
	".avi": {}, ".flv": {}, ".m4v": {}, ".mkv": {}, ".mov": {}, ".mp4": {}, ".mpeg": {}, ".mpg": {}, ".webm": {}, ".wmv": {},
}
