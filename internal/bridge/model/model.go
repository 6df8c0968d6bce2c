// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package model defines shared data structures for bridge communication.
// The types are transport-agnostic: the in-process façade returns them
// directly and the gRPC transport encodes them on the wire.
package model

import "time"

// CommandResult is what an executeCore call hands back across the boundary.
// Success implies ExitCode is 0. Stdout and Stderr hold everything the
// engine printed during the call.
type CommandResult struct {
	RequestID  string
	Success    bool
	ExitCode   *int
	Stdout     string
	Stderr     string
	SpawnError string
	Duration   time.Duration
}

// Code returns the exit code, or -1 when the process never exited normally.
func (r CommandResult) Code() int {
	if r.ExitCode == nil {
		return -1
	}
	return *r.ExitCode
}
