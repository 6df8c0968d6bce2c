package stream

import (
	"bytes"
	"encoding/json"
	"strings"

	errs "timemachine/cli/internal/errors"

	"github.com/pterm/pterm"
)

// MaxLineBytes bounds the reassembly buffer. A line that grows past it is
// relayed as plain text without marker scanning.
const MaxLineBytes = 1 << 20

// Demux classifies one stdout stream. It implements io.Writer so it can sit
// directly behind a pipe reader; chunk boundaries need not align with lines.
// A Demux is not safe for concurrent use: one stream, one writer.
type Demux struct {
	requestID string
	emit      Handler
	log       *pterm.Logger
	pending   []byte
}

// NewDemux returns a demultiplexer that tags events with requestID and passes
// them to emit.
func NewDemux(requestID string, emit Handler, log *pterm.Logger) *Demux {
	return &Demux{requestID: requestID, emit: emit, log: log}
}

// Write buffers p and classifies every complete line. It never fails.
func (d *Demux) Write(p []byte) (int, error) {
	d.pending = append(d.pending, p...)
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		line := string(d.pending[:i+1])
		d.pending = append(d.pending[:0], d.pending[i+1:]...)
		d.classify(line)
	}
	if len(d.pending) > MaxLineBytes {
		line := string(d.pending)
		d.pending = d.pending[:0]
		d.log.Warn("engine stdout line exceeds buffer, relaying without marker scan",
			d.log.Args("request", d.requestID, "bytes", len(line)))
		d.emit(Event{Kind: KindStdout, RequestID: d.requestID, Text: line})
	}
	return len(p), nil
}

// Flush classifies a trailing line that had no newline. Call it once the
// stream reaches EOF.
func (d *Demux) Flush() {
	if len(d.pending) == 0 {
		return
	}
	line := string(d.pending)
	d.pending = d.pending[:0]
	d.classify(line)
}

func (d *Demux) classify(line string) {
	if kind, rest, ok := FindMarker(strings.TrimRight(line, "\r\n")); ok {
		d.marker(kind, line, rest)
		return
	}
	d.emit(Event{Kind: KindStdout, RequestID: d.requestID, Text: line})
}

// FindMarker returns the kind of the earliest marker in line and the text
// after it. A marker with a double quote anywhere before it lies inside a
// JSON string and is not a marker.
func FindMarker(line string) (Kind, string, bool) {
	best, kind, rest := -1, Kind(0), ""
	for _, m := range []struct {
		kind   Kind
		prefix string
	}{{KindProgress, ProgressMarker}, {KindCompletion, CompletionMarker}} {
		i := strings.Index(line, m.prefix)
		if i < 0 || strings.ContainsRune(line[:i], '"') {
			continue
		}
		if best < 0 || i < best {
			best, kind, rest = i, m.kind, line[i+len(m.prefix):]
		}
	}
	return kind, rest, best >= 0
}
