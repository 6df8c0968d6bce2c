// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package wire describes the Bridge gRPC service without generated code.
// Messages are protobuf well-known types: argument vectors travel as
// structpb.ListValue, results and events as structpb.Struct, scalars in
// wrapperspb wrappers.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"timemachine/cli/internal/bridge/model"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/stream"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "timemachine.bridge.v1.Bridge"

// Method names.
const (
	MethodExecuteCore       = "ExecuteCore"
	MethodGetBackupProfiles = "GetBackupProfiles"
	MethodSelectDirectory   = "SelectDirectory"
	MethodOpenExternalURL   = "OpenExternalURL"
	MethodTriggerBackup     = "TriggerBackup"
	MethodSubscribe         = "Subscribe"
)

// FullMethod returns "/<service>/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// Methods lists every declared method by full name.
var Methods = map[string]bool{
	FullMethod(MethodExecuteCore):       true,
	FullMethod(MethodGetBackupProfiles): true,
	FullMethod(MethodSelectDirectory):   true,
	FullMethod(MethodOpenExternalURL):   true,
	FullMethod(MethodTriggerBackup):     true,
	FullMethod(MethodSubscribe):         true,
}

// SubscribeStream is the descriptor for the server-streaming Subscribe call.
var SubscribeStream = grpc.StreamDesc{StreamName: MethodSubscribe, ServerStreams: true}

// Strings converts a list of strings for the wire.
func Strings(ss []string) *structpb.ListValue {
	vals := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		vals[i] = structpb.NewStringValue(s)
	}
	return &structpb.ListValue{Values: vals}
}

// FromStrings is the inverse of Strings. Non-string entries are an error.
func FromStrings(l *structpb.ListValue) ([]string, error) {
	out := make([]string, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a string", i)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

// EncodeResult packs a command result and the call's error into one struct,
// so the captured output survives a failed call.
func EncodeResult(r model.CommandResult, callErr error) (*structpb.Struct, error) {
	res := map[string]any{
		"requestId":  r.RequestID,
		"success":    r.Success,
		"stdout":     r.Stdout,
		"stderr":     r.Stderr,
		"durationMs": r.Duration.Milliseconds(),
	}
	if r.ExitCode != nil {
		res["exitCode"] = *r.ExitCode
	}
	if r.SpawnError != "" {
		res["spawnError"] = r.SpawnError
	}
	m := map[string]any{"result": res}
	if callErr != nil {
		m["error"] = map[string]any{"kind": string(errs.KindOf(callErr)), "message": message(callErr)}
	}
	return structpb.NewStruct(m)
}

// DecodeResult unpacks EncodeResult.
func DecodeResult(s *structpb.Struct) (model.CommandResult, error) {
	m := s.AsMap()
	res, _ := m["result"].(map[string]any)
	r := model.CommandResult{
		RequestID:  str(res["requestId"]),
		Success:    res["success"] == true,
		Stdout:     str(res["stdout"]),
		Stderr:     str(res["stderr"]),
		SpawnError: str(res["spawnError"]),
	}
	if ms, ok := res["durationMs"].(float64); ok {
		r.Duration = time.Duration(ms) * time.Millisecond
	}
	if code, ok := res["exitCode"].(float64); ok {
		c := int(code)
		r.ExitCode = &c
	}
	if e, ok := m["error"].(map[string]any); ok {
		kind := errs.Kind(str(e["kind"]))
		if kind == "" {
			kind = errs.NonZeroExit
		}
		return r, errs.New(kind, str(e["message"]))
	}
	return r, nil
}

// EncodeEvent converts an event for the Subscribe stream.
func EncodeEvent(ev stream.Event) (*structpb.Struct, error) {
	m := map[string]any{
		"kind":      ev.Kind.String(),
		"requestId": ev.RequestID,
		"text":      ev.Text,
	}
	if ev.Payload.Fields != nil {
		m["payload"] = ev.Payload.Fields
	}
	return structpb.NewStruct(m)
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(s *structpb.Struct) (stream.Event, error) {
	m := s.AsMap()
	kind, ok := stream.ParseKind(str(m["kind"]))
	if !ok {
		return stream.Event{}, fmt.Errorf("unknown event kind %q", m["kind"])
	}
	ev := stream.Event{Kind: kind, RequestID: str(m["requestId"]), Text: str(m["text"])}
	if fields, ok := m["payload"].(map[string]any); ok {
		raw, err := json.Marshal(fields)
		if err != nil {
			return stream.Event{}, fmt.Errorf("encode payload: %w", err)
		}
		ev.Payload = stream.Payload{Raw: raw, Fields: fields}
	}
	return ev, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
