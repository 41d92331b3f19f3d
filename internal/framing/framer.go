package framing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// Wire tokens of the primary channel.
const (
	StartSentinel = "JSON_OUTPUT_START"
	EndSentinel   = "JSON_OUTPUT_END"
	ChunkPrefix   = "CHUNK:"
)

// DefaultChunkSize bounds each chunk line payload in bytes.
const DefaultChunkSize = 1 << 20

// ErrFrameAlreadyEmitted is returned when a Framer is asked to emit twice.
var ErrFrameAlreadyEmitted = errors.New("result frame already emitted")

// Record is the structured success payload of a job.
type Record map[string]any

// FramerOption configures a Framer.
type FramerOption func(*Framer)

// WithChunkSize overrides the chunk bound. Values <= 0 keep the default.
func WithChunkSize(size int) FramerOption {
	return func(f *Framer) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithSingleLine writes the payload as one unprefixed line regardless of size.
func WithSingleLine() FramerOption {
	return func(f *Framer) {
		f.singleLine = true
	}
}

// Framer writes at most one result frame to the primary channel.
type Framer struct {
	w          io.Writer
	chunkSize  int
	singleLine bool
	emitted    atomic.Bool
}

// NewFramer constructs a Framer writing to w.
func NewFramer(w io.Writer, opts ...FramerOption) *Framer {
	f := &Framer{w: w, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Emitted reports whether a frame has been written (or attempted).
func (f *Framer) Emitted() bool {
	return f.emitted.Load()
}

// ChunkSize returns the configured chunk bound.
func (f *Framer) ChunkSize() int {
	return f.chunkSize
}

// Emit serializes record and writes it between the sentinels. Serialization
// failures leave the channel untouched and do not consume the framer.
func (f *Framer) Emit(record Record) error {
	if f.emitted.Load() {
		return ErrFrameAlreadyEmitted
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode result record: %w", err)
	}
	if !f.emitted.CompareAndSwap(false, true) {
		return ErrFrameAlreadyEmitted
	}

	frame := f.encode(payload)
	if _, err := f.w.Write(frame); err != nil {
		return fmt.Errorf("write result frame: %w", err)
	}
	return nil
}

func (f *Framer) encode(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(payload) + len(StartSentinel) + len(EndSentinel) + 8*(len(payload)/f.chunkSize+2))

	buf.WriteString(StartSentinel)
	buf.WriteByte('\n')
	if f.singleLine {
		buf.Write(payload)
		buf.WriteByte('\n')
	} else {
		for _, chunk := range Split(payload, f.chunkSize) {
			buf.WriteString(ChunkPrefix)
			buf.Write(chunk)
			buf.WriteByte('\n')
		}
	}
	buf.WriteString(EndSentinel)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Split slices payload into consecutive pieces of at most size bytes. An empty
// payload yields no pieces.
func Split(payload []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]byte, 0, (len(payload)+size-1)/size)
	for start := 0; start < len(payload); start += size {
		end := min(start+size, len(payload))
		chunks = append(chunks, payload[start:end])
	}
	return chunks
}
