// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/stream"
)

const fakeEngineEnv = "TM_FAKE_ENGINE"

// TestMain doubles as the fake engine: when the env marker is present the
// test binary behaves like utm-core instead of running tests.
func TestMain(m *testing.M) {
	if os.Getenv(fakeEngineEnv) == "1" {
		os.Exit(fakeEngine(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeEngine(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "no command")
		return 2
	}
	switch args[0] {
	case "echo-args":
		b, _ := json.Marshal(args[1:])
		os.Stdout.Write(b)
		return 0
	case "exit":
		code, _ := strconv.Atoi(args[1])
		fmt.Fprint(os.Stdout, "out\n")
		fmt.Fprint(os.Stderr, "err\n")
		return code
	case "split-progress":
		for _, part := range []string{"Scanning files...\nPRO", "GRESS:{\"filesPro", "cessed\":5}\n", "done\n"} {
			os.Stdout.Write([]byte(part))
			time.Sleep(20 * time.Millisecond)
		}
		return 0
	case "stderr-marker":
		fmt.Fprint(os.Stderr, "PROGRESS:{\"filesProcessed\":1}\n")
		return 0
	case "emit":
		n, _ := strconv.Atoi(args[2])
		for i := 0; i < n; i++ {
			fmt.Fprint(os.Stdout, args[1]+"\n")
		}
		return 0
	case "block":
		fmt.Fprint(os.Stdout, "started\n")
		time.Sleep(30 * time.Second)
		return 0
	case "--list-profiles":
		fmt.Fprint(os.Stdout, "Available backup profiles:\n  - Home Backup\n")
		return 0
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
	return 2
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	if opts.Path == "" {
		opts.Path = exe
	}
	opts.Env = append(opts.Env, fakeEngineEnv+"=1")
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return New(opts)
}

func TestExecutePassesArgumentsLiterally(t *testing.T) {
	m := newTestManager(t, Options{})
	argv := []string{"echo-args", "; rm -rf /", "$(whoami)", "a b", "`id`", "*"}

	res, err := m.Execute(context.Background(), argv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var got []string
	if err := json.Unmarshal([]byte(res.Stdout), &got); err != nil {
		t.Fatalf("decode echoed args: %v (stdout %q)", err, res.Stdout)
	}
	if !reflect.DeepEqual(got, argv[1:]) {
		t.Errorf("engine received %q, want %q", got, argv[1:])
	}
}

func TestExecuteExitCodes(t *testing.T) {
	tests := []struct {
		code     int
		wantKind errs.Kind
	}{
		{code: 0},
		{code: 1, wantKind: errs.NonZeroExit},
		{code: 3, wantKind: errs.NonZeroExit},
		{code: 42, wantKind: errs.NonZeroExit},
	}
	m := newTestManager(t, Options{})
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			res, err := m.Execute(context.Background(), []string{"exit", strconv.Itoa(tt.code)})
			if got := errs.KindOf(err); got != tt.wantKind {
				t.Fatalf("error kind = %q, want %q (err %v)", got, tt.wantKind, err)
			}
			if res.Success != (tt.code == 0) {
				t.Errorf("Success = %v for code %d", res.Success, tt.code)
			}
			if res.ExitCode == nil || *res.ExitCode != tt.code {
				t.Errorf("ExitCode = %v, want %d", res.ExitCode, tt.code)
			}
			if res.Stdout != "out\n" || res.Stderr != "err\n" {
				t.Errorf("captured stdout %q stderr %q", res.Stdout, res.Stderr)
			}
		})
	}
}

func TestExecuteMissingEngineIsSpawnError(t *testing.T) {
	m := newTestManager(t, Options{Path: "/nonexistent/bin/utm-core"})
	res, err := m.Execute(context.Background(), []string{"--list-profiles"})
	if !errs.Is(err, errs.SpawnFailed) {
		t.Fatalf("error = %v, want spawn_failed", err)
	}
	if errs.Is(err, errs.NonZeroExit) {
		t.Error("spawn failure reported as nonzero exit")
	}
	if res.Success || res.ExitCode != nil || res.SpawnError == "" {
		t.Errorf("result = %+v, want failed spawn without exit code", res)
	}
}

func TestExecuteStreamsMarkersAcrossChunks(t *testing.T) {
	hub := stream.NewHub(logging.Discard())
	var mu sync.Mutex
	var hubEvents, callEvents []stream.Event
	sub := hub.Subscribe(func(ev stream.Event) {
		mu.Lock()
		hubEvents = append(hubEvents, ev)
		mu.Unlock()
	})
	defer sub.Close()

	m := newTestManager(t, Options{Publisher: hub})
	res, err := m.Execute(context.Background(), []string{"split-progress"}, func(ev stream.Event) {
		mu.Lock()
		callEvents = append(callEvents, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hubEvents) != len(callEvents) {
		t.Errorf("hub saw %d events, observer saw %d", len(hubEvents), len(callEvents))
	}
	var progress []stream.Event
	var lines []string
	for _, ev := range callEvents {
		if ev.RequestID != res.RequestID {
			t.Errorf("event request id %q, want %q", ev.RequestID, res.RequestID)
		}
		switch ev.Kind {
		case stream.KindProgress:
			progress = append(progress, ev)
		case stream.KindStdout:
			lines = append(lines, ev.Text)
		}
	}
	if len(progress) != 1 {
		t.Fatalf("progress events = %d, want 1", len(progress))
	}
	if n, _ := progress[0].Payload.Int("filesProcessed"); n != 5 {
		t.Errorf("filesProcessed = %d, want 5", n)
	}
	if want := []string{"Scanning files...\n", "done\n"}; !reflect.DeepEqual(lines, want) {
		t.Errorf("stdout relay = %q, want %q", lines, want)
	}
	if !strings.Contains(res.Stdout, "PROGRESS:{\"filesProcessed\":5}") {
		t.Errorf("captured stdout lost the marker line: %q", res.Stdout)
	}
}

func TestExecuteDoesNotScanStderr(t *testing.T) {
	m := newTestManager(t, Options{})
	var kinds []stream.Kind
	var mu sync.Mutex
	_, err := m.Execute(context.Background(), []string{"stderr-marker"}, func(ev stream.Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, k := range kinds {
		if k != stream.KindStderr {
			t.Errorf("stderr produced %v event", k)
		}
	}
	if len(kinds) == 0 {
		t.Error("no stderr events")
	}
}

func TestExecuteConcurrentBuffersAreIsolated(t *testing.T) {
	m := newTestManager(t, Options{})
	letters := []string{"A", "B", "C"}
	results := make([]Result, len(letters))
	var wg sync.WaitGroup
	for i, l := range letters {
		wg.Add(1)
		go func(i int, l string) {
			defer wg.Done()
			res, err := m.Execute(context.Background(), []string{"emit", l, "500"})
			if err != nil {
				t.Errorf("Execute(%s) error = %v", l, err)
			}
			results[i] = res
		}(i, l)
	}
	wg.Wait()

	for i, l := range letters {
		want := strings.Repeat(l+"\n", 500)
		if results[i].Stdout != want {
			t.Errorf("stdout for %s has %d bytes of foreign or missing output", l, len(results[i].Stdout))
		}
	}
}

func TestExecuteCopiesArgv(t *testing.T) {
	m := newTestManager(t, Options{})
	argv := []string{"echo-args", "x"}
	res, err := m.Execute(context.Background(), argv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	argv[1] = "mutated"
	if res.Argv[1] != "x" {
		t.Errorf("result argv aliases caller slice: %q", res.Argv)
	}
}

func TestExecuteCancelStopsEngine(t *testing.T) {
	m := newTestManager(t, Options{KillGrace: 500 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		_, err := m.Execute(ctx, []string{"block"}, func(ev stream.Event) {
			if ev.Kind == stream.KindStdout && ev.Text == "started\n" {
				once.Do(func() { close(started) })
			}
		})
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("engine never started")
	}
	if n := len(m.Running()); n != 1 {
		t.Errorf("Running() = %d, want 1", n)
	}
	cancel()

	select {
	case err := <-done:
		if !errs.Is(err, errs.Canceled) {
			t.Errorf("error = %v, want canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Execute did not return after cancel")
	}
	if n := len(m.Running()); n != 0 {
		t.Errorf("Running() = %d after exit, want 0", n)
	}
}

func TestExecuteAdmissionLimit(t *testing.T) {
	m := newTestManager(t, Options{MaxConcurrent: 1, KillGrace: 200 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	var once sync.Once
	first := make(chan error, 1)
	go func() {
		_, err := m.Execute(ctx, []string{"block"}, func(ev stream.Event) {
			once.Do(func() { close(started) })
		})
		first <- err
	}()
	<-started

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer waitCancel()
	_, err := m.Execute(waitCtx, []string{"echo-args"})
	if !errs.Is(err, errs.Canceled) {
		t.Errorf("second call error = %v, want canceled while waiting for a slot", err)
	}

	cancel()
	<-first
}
