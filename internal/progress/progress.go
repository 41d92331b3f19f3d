package progress

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Prefix marks progress lines on the diagnostic channel.
const Prefix = "PROGRESS:"

// SpeedUnknown is rendered when no transfer rate is available.
const SpeedUnknown = "N/A"

const (
	fieldSeparator = "|"
	fieldCount     = 4
	mebibyte       = 1024 * 1024
)

// ErrMalformedSample reports a progress line that cannot be parsed.
var ErrMalformedSample = errors.New("malformed progress sample")

// Tick is one raw progress callback from a collaborator.
type Tick struct {
	Downloaded int64
	// Total is the expected size; <= 0 means unknown.
	Total int64
	// Speed is bytes per second; <= 0 means unknown.
	Speed float64
	// ETA is the estimated time remaining; <= 0 means unknown.
	ETA time.Duration
	// Elapsed is the time spent so far; <= 0 lets the encoder measure it.
	Elapsed time.Duration
}

// Sample is one transient progress measurement as carried on the wire.
type Sample struct {
	Percent float64
	// Speed is bytes per second; 0 when the wire value was N/A.
	Speed     float64
	SpeedText string
	ETA       time.Duration
	Elapsed   time.Duration
}

// Encoder turns ticks into PROGRESS lines.
type Encoder struct {
	w     io.Writer
	now   func() time.Time
	start time.Time
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithClock overrides the time source used to measure elapsed time.
func WithClock(now func() time.Time) EncoderOption {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEncoder returns an encoder writing to w. Elapsed time is measured from
// construction when ticks do not carry it.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{w: w, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.start = e.now()
	return e
}

// Encode writes one progress line for t. Ticks without a known total are
// skipped and report false.
func (e *Encoder) Encode(t Tick) (bool, error) {
	sample, ok := e.sample(t)
	if !ok {
		return false, nil
	}
	if _, err := io.WriteString(e.w, Format(sample)+"\n"); err != nil {
		return false, fmt.Errorf("write progress: %w", err)
	}
	return true, nil
}

// Callback adapts Encode into a collaborator progress hook. Write failures are
// dropped; progress is never authoritative.
func (e *Encoder) Callback() func(Tick) {
	return func(t Tick) {
		_, _ = e.Encode(t)
	}
}

func (e *Encoder) sample(t Tick) (Sample, bool) {
	if t.Total <= 0 {
		return Sample{}, false
	}
	percent := float64(t.Downloaded) / float64(t.Total) * 100
	percent = min(max(percent, 0), 100)

	elapsed := t.Elapsed
	if elapsed <= 0 {
		elapsed = e.now().Sub(e.start)
	}
	return Sample{
		Percent: percent,
		Speed:   max(t.Speed, 0),
		ETA:     max(t.ETA, 0),
		Elapsed: max(elapsed, 0),
	}, true
}

// Format renders s as a wire line without the trailing newline.
func Format(s Sample) string {
	return Prefix + strings.Join([]string{
		strconv.FormatFloat(s.Percent, 'f', 1, 64),
		formatSpeed(s.Speed),
		formatClock(s.ETA),
		formatClock(s.Elapsed),
	}, fieldSeparator)
}

func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return SpeedUnknown
	}
	return fmt.Sprintf("%.2fMiB/s", bytesPerSecond/mebibyte)
}

func formatClock(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// IsProgressLine reports whether line carries the progress prefix.
func IsProgressLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), Prefix)
}

// ParseLine decodes a progress line. ok is false for lines without the prefix.
// A prefixed line with the wrong shape yields ErrMalformedSample; callers
// should treat that as a warning and keep reading.
func ParseLine(line string) (Sample, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, Prefix) {
		return Sample{}, false, nil
	}
	fields := strings.Split(strings.TrimPrefix(line, Prefix), fieldSeparator)
	if len(fields) != fieldCount {
		return Sample{}, true, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedSample, fieldCount, len(fields))
	}

	percent, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil || percent < 0 || percent > 100 {
		return Sample{}, true, fmt.Errorf("%w: percent %q", ErrMalformedSample, fields[0])
	}
	speedText := strings.TrimSpace(fields[1])
	speed, err := parseSpeed(speedText)
	if err != nil {
		return Sample{}, true, err
	}
	eta, err := parseClock(fields[2])
	if err != nil {
		return Sample{}, true, err
	}
	elapsed, err := parseClock(fields[3])
	if err != nil {
		return Sample{}, true, err
	}
	return Sample{
		Percent:   percent,
		Speed:     speed,
		SpeedText: speedText,
		ETA:       eta,
		Elapsed:   elapsed,
	}, true, nil
}

func parseSpeed(value string) (float64, error) {
	if value == SpeedUnknown {
		return 0, nil
	}
	number, ok := strings.CutSuffix(value, "MiB/s")
	if !ok {
		return 0, fmt.Errorf("%w: speed %q", ErrMalformedSample, value)
	}
	rate, err := strconv.ParseFloat(number, 64)
	if err != nil || rate < 0 {
		return 0, fmt.Errorf("%w: speed %q", ErrMalformedSample, value)
	}
	return rate * mebibyte, nil
}

func parseClock(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	minutes, seconds, ok := strings.Cut(value, ":")
	if !ok {
		return 0, fmt.Errorf("%w: clock %q", ErrMalformedSample, value)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("%w: clock %q", ErrMalformedSample, value)
	}
	s, err := strconv.Atoi(seconds)
	if err != nil || s < 0 || s > 59 {
		return 0, fmt.Errorf("%w: clock %q", ErrMalformedSample, value)
	}
	return time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}
