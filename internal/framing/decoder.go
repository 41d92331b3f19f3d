package framing

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoResultEmitted means the stream ended without a start sentinel.
	ErrNoResultEmitted = errors.New("no result frame emitted")
	// ErrIncompleteFrame means the stream ended between the sentinels.
	ErrIncompleteFrame = errors.New("result frame not terminated")
	// ErrMalformedPayload means the reassembled payload is not a valid record.
	ErrMalformedPayload = errors.New("malformed result payload")
	// ErrDuplicateFrame means a second start sentinel was observed.
	ErrDuplicateFrame = errors.New("duplicate result frame")
)

// State is the decoder position within the primary channel.
type State int

const (
	StateScanning State = iota
	StateCollecting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateCollecting:
		return "collecting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decoder reassembles one result frame from a line stream. It is not safe for
// concurrent use.
type Decoder struct {
	state   State
	buf     bytes.Buffer
	chunks  int
	noise   int
	record  Record
	err     error
	dupSeen bool
}

// NewDecoder returns a decoder in the scanning state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// State returns the current decoder state.
func (d *Decoder) State() State {
	return d.state
}

// Chunks returns the number of payload lines collected so far.
func (d *Decoder) Chunks() int {
	return d.chunks
}

// NoiseLines returns the number of lines discarded outside the frame.
func (d *Decoder) NoiseLines() int {
	return d.noise
}

// Complete reports whether an end sentinel has been observed.
func (d *Decoder) Complete() bool {
	return d.state == StateDone
}

// Feed consumes one line. The returned error is non-nil once the stream is
// known to be invalid (duplicate frame or malformed payload); it is sticky and
// also surfaced by Result.
func (d *Decoder) Feed(line string) error {
	if d.dupSeen {
		return ErrDuplicateFrame
	}
	line = strings.TrimRight(line, "\r\n")
	marker := strings.TrimSpace(line)

	switch d.state {
	case StateScanning:
		if marker == StartSentinel {
			d.state = StateCollecting
			return nil
		}
		d.noise++
		return nil
	case StateCollecting:
		switch {
		case marker == EndSentinel:
			d.finish()
			return d.err
		case marker == StartSentinel:
			d.dupSeen = true
			return ErrDuplicateFrame
		case strings.HasPrefix(line, ChunkPrefix):
			d.buf.WriteString(line[len(ChunkPrefix):])
		default:
			d.buf.WriteString(line)
		}
		d.chunks++
		return nil
	default:
		if marker == StartSentinel {
			d.dupSeen = true
			return ErrDuplicateFrame
		}
		d.noise++
		return d.err
	}
}

func (d *Decoder) finish() {
	d.state = StateDone
	payload := d.buf.Bytes()
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		d.err = fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	} else if record == nil {
		d.err = fmt.Errorf("%w: payload is not an object", ErrMalformedPayload)
	} else {
		d.record = record
	}
	d.buf.Reset()
}

// Result reports the decoded record once the stream has ended.
func (d *Decoder) Result() (Record, error) {
	if d.dupSeen {
		return nil, ErrDuplicateFrame
	}
	switch d.state {
	case StateScanning:
		return nil, ErrNoResultEmitted
	case StateCollecting:
		return nil, fmt.Errorf("%w after %d payload lines", ErrIncompleteFrame, d.chunks)
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.record, nil
}

// Decode reads r to EOF and returns the framed record. Lines are read without
// a length cap so unchunked payloads of any size are accepted.
func Decode(r io.Reader) (Record, error) {
	dec := NewDecoder()
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if feedErr := dec.Feed(line); errors.Is(feedErr, ErrDuplicateFrame) {
				return nil, feedErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read primary channel: %w", err)
		}
	}
	return dec.Result()
}

// IsProtocolError reports whether err marks a frame-level protocol violation
// regardless of exit status.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrDuplicateFrame) || errors.Is(err, ErrMalformedPayload)
}
