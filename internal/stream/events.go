// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package stream turns raw engine output into typed events and fans them out
// to subscribers. The engine multiplexes plain log text and JSON progress or
// completion markers on one stdout pipe; Demux reassembles lines and splits
// them apart, Hub delivers the results to whoever registered for them.
package stream

import (
	"encoding/json"
	"fmt"
)

// Marker prefixes recognised on engine stdout.
const (
	ProgressMarker   = "PROGRESS:"
	CompletionMarker = "COMPLETE:"
)

// Kind enumerates event kinds.
type Kind int

const (
	// KindStdout is a plain stdout line (marker lines are never relayed as KindStdout).
	KindStdout Kind = iota + 1
	// KindStderr is a raw stderr chunk, never scanned for markers.
	KindStderr
	// KindProgress carries the JSON payload of a PROGRESS: line.
	KindProgress
	// KindCompletion carries the JSON payload of a COMPLETE: line.
	KindCompletion
	// KindTrigger is a fire-and-forget "perform backup now" notification.
	KindTrigger
)

var kindNames = map[Kind]string{
	KindStdout:     "output",
	KindStderr:     "error",
	KindProgress:   "progress",
	KindCompletion: "completion",
	KindTrigger:    "trigger",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Event is a single classified piece of engine output.
type Event struct {
	Kind Kind
	// RequestID correlates the event with the execute call that produced it.
	RequestID string
	// Text is the raw stdout line or stderr chunk. For marker events it is the
	// full marker line.
	Text string
	// Payload is set for KindProgress and KindCompletion.
	Payload Payload
}

// Payload is the decoded JSON object that followed a marker.
type Payload struct {
	Raw    json.RawMessage
	Fields map[string]any
}

// Decode unmarshals the raw payload into v.
func (p Payload) Decode(v any) error {
	if len(p.Raw) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(p.Raw, v)
}

// Int returns an integral field. JSON numbers decode as float64, so
// fractional values report false.
func (p Payload) Int(key string) (int64, bool) {
	f, ok := p.Fields[key].(float64)
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// String returns a string field.
func (p Payload) String(key string) (string, bool) {
	s, ok := p.Fields[key].(string)
	return s, ok
}

// Handler receives events. Handlers for stdout and stderr may be invoked
// concurrently from different goroutines and must be safe for that.
type Handler func(Event)
