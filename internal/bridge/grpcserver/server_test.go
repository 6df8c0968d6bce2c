package grpcserver_test

import (
	"context"
	"net"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"timemachine/cli/internal/bridge"
	"timemachine/cli/internal/bridge/grpcclient"
	"timemachine/cli/internal/bridge/grpcserver"
	"timemachine/cli/internal/bridge/wire"
	"timemachine/cli/internal/engine"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/stream"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
)

type scriptedEngine struct {
	mu   sync.Mutex
	runs map[string]engine.Result
	errs map[string]error
}

func (e *scriptedEngine) Execute(_ context.Context, argv []string, _ ...stream.Handler) (engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.runs[argv[0]]
	res.Argv = argv
	return res, e.errs[argv[0]]
}

func intp(i int) *int { return &i }

type harness struct {
	hub    *stream.Hub
	client *grpcclient.Client
	dial   func(context.Context, string) (net.Conn, error)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	eng := &scriptedEngine{
		runs: map[string]engine.Result{
			"--list-profiles": {RequestID: "r1", Success: true, ExitCode: intp(0), Stdout: "Available backup profiles:\n  - Home Backup\n"},
			"system-info":     {RequestID: "r2", Success: true, ExitCode: intp(0), Stdout: `{"uptime":"1 day"}`},
			"delete-profile":  {RequestID: "r3", ExitCode: intp(3), Stdout: "partial\n", Stderr: "profile is locked\n"},
		},
		errs: map[string]error{
			"delete-profile": errs.New(errs.NonZeroExit, "engine exited with code 3"),
		},
	}
	hub := stream.NewHub(logging.Discard())
	local := bridge.NewLocal(eng, hub, nil, logging.Discard())
	srv := grpcserver.New(local, logging.Discard())

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	dial := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }

	client, err := grpcclient.New("passthrough:///bufnet", logging.Discard(), grpc.WithContextDialer(dial))
	if err != nil {
		t.Fatalf("grpcclient.New() error = %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	return &harness{hub: hub, client: client, dial: dial}
}

func TestExecuteCoreRoundTrip(t *testing.T) {
	h := newHarness(t)
	res, err := h.client.ExecuteCore(context.Background(), []string{"system-info"})
	if err != nil {
		t.Fatalf("ExecuteCore() error = %v", err)
	}
	if !res.Success || res.Code() != 0 || res.Stdout != `{"uptime":"1 day"}` || res.RequestID != "r2" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteCoreFailureKeepsOutput(t *testing.T) {
	h := newHarness(t)
	res, err := h.client.ExecuteCore(context.Background(), []string{"delete-profile", "--profile-id", "p1"})
	if !errs.Is(err, errs.NonZeroExit) {
		t.Fatalf("error = %v, want nonzero_exit", err)
	}
	if res.Success || res.Code() != 3 || res.Stdout != "partial\n" || res.Stderr != "profile is locked\n" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteCoreRejectedAcrossBoundary(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.ExecuteCore(context.Background(), []string{"--config", "/tmp/evil.json", "system-info"})
	if !errs.Is(err, errs.Rejected) {
		t.Errorf("error = %v, want rejected", err)
	}
}

func TestGetBackupProfilesRemote(t *testing.T) {
	h := newHarness(t)
	got, err := h.client.GetBackupProfiles(context.Background())
	if err != nil {
		t.Fatalf("GetBackupProfiles() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Home Backup"}) {
		t.Errorf("profiles = %q", got)
	}
}

func TestRemoteDesktopOperations(t *testing.T) {
	h := newHarness(t)
	if ok, err := h.client.OpenExternalURL(context.Background(), "file:///etc/passwd"); ok || !errs.Is(err, errs.Rejected) {
		t.Errorf("OpenExternalURL(file) = %v, %v, want rejected", ok, err)
	}
	if _, err := h.client.SelectDirectory(context.Background()); !errs.Is(err, errs.Unavailable) {
		t.Errorf("SelectDirectory() error = %v, want unavailable without a desktop", err)
	}
}

func TestUndeclaredMethodIsRejected(t *testing.T) {
	h := newHarness(t)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(h.dial))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer conn.Close()
	err = conn.Invoke(context.Background(), "/"+wire.ServiceName+"/Shell", &emptypb.Empty{}, new(emptypb.Empty))
	if got := wire.FromStatus(err); !errs.Is(got, errs.Rejected) {
		t.Errorf("error = %v, want rejected", got)
	}
}

func TestRemoteSubscriptions(t *testing.T) {
	h := newHarness(t)
	progress := make(chan stream.Event, 4)
	triggers := make(chan stream.Event, 4)
	subProgress := h.client.OnProgress(func(ev stream.Event) { progress <- ev })
	subTrigger := h.client.OnTriggerBackup(func(ev stream.Event) { triggers <- ev })

	h.hub.Publish(stream.Event{Kind: stream.KindStdout, RequestID: "r9", Text: "noise\n"})
	h.hub.Publish(stream.Event{
		Kind:      stream.KindProgress,
		RequestID: "r9",
		Text:      "PROGRESS:{\"filesProcessed\":5}\n",
		Payload:   stream.Payload{Raw: []byte(`{"filesProcessed":5}`), Fields: map[string]any{"filesProcessed": float64(5)}},
	})
	if err := h.client.TriggerBackup(context.Background(), "p1"); err != nil {
		t.Fatalf("TriggerBackup() error = %v", err)
	}

	select {
	case ev := <-progress:
		if ev.Kind != stream.KindProgress || ev.RequestID != "r9" {
			t.Errorf("progress event = %+v", ev)
		}
		if n, ok := ev.Payload.Int("filesProcessed"); !ok || n != 5 {
			t.Errorf("filesProcessed = %d, %v", n, ok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no progress event")
	}
	select {
	case ev := <-triggers:
		if ev.Text != "p1" {
			t.Errorf("trigger profile = %q", ev.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no trigger event")
	}

	subProgress.Close()
	subProgress.Close()
	subTrigger.Close()
	deadline := time.Now().Add(5 * time.Second)
	for h.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("server kept %d listeners after close", h.hub.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListenCreatesPrivateSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "bridge.sock")
	lis, err := grpcserver.Listen(path)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	lis.Close()

	// A stale socket left behind must not block the next start.
	lis, err = grpcserver.Listen(path)
	if err != nil {
		t.Fatalf("Listen() over stale socket error = %v", err)
	}
	defer lis.Close()
}
