package progress

import (
	"strings"
	"testing"

	"timemachine/cli/internal/protocol"
	"timemachine/cli/internal/stream"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	tr.Update("a", protocol.BackupProgress{PercentComplete: 10, ProcessedFiles: 1, TotalFiles: 10})
	tr.Update("b", protocol.BackupProgress{PercentComplete: 50})
	tr.Update("a", protocol.BackupProgress{PercentComplete: 20, ProcessedFiles: 2, TotalFiles: 10})
	tr.Complete("a", protocol.BackupResult{Success: true, FileCount: 10, Size: 2048, Duration: 3})
	tr.Complete("b", protocol.BackupResult{Success: false, ErrorMessage: "disk full"})
	tr.Update("a", protocol.BackupProgress{PercentComplete: 99})

	active, completed, failed := tr.Counts()
	if active != 0 || completed != 1 || failed != 1 {
		t.Errorf("Counts() = %d, %d, %d", active, completed, failed)
	}
	if !tr.HasFailures() {
		t.Error("HasFailures() = false")
	}
	lines := tr.Lines("*")
	if len(lines) != 2 {
		t.Fatalf("Lines() = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "✓ backed up 10 files (2.0 KiB)") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "✗ failed: disk full" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestApply(t *testing.T) {
	tr := NewTracker()
	ok := Apply(tr, stream.Event{Kind: stream.KindProgress, RequestID: "r1", Payload: stream.Payload{Raw: []byte(`{"percentComplete":12.5,"currentFile":"/home/u/a.txt"}`)}})
	if !ok {
		t.Fatal("Apply(progress) = false")
	}
	if got := tr.Lines(">"); len(got) != 1 || !strings.Contains(got[0], "12.5%") || !strings.Contains(got[0], "/home/u/a.txt") {
		t.Errorf("Lines() = %q", got)
	}
	if Apply(tr, stream.Event{Kind: stream.KindStdout, Text: "noise"}) {
		t.Error("Apply(stdout) = true")
	}
	if Apply(tr, stream.Event{Kind: stream.KindCompletion, Payload: stream.Payload{Raw: []byte(`[]`)}}) {
		t.Error("Apply(bad completion) = true")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{1 << 30, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderStateCompose(t *testing.T) {
	rs := NewRenderState()
	text, changed := rs.Compose([]string{"long line", "x"})
	if !changed || text != "long line\nx        " {
		t.Errorf("Compose() = %q, %v", text, changed)
	}
	if _, changed := rs.Compose([]string{"long line", "x"}); changed {
		t.Error("identical frame reported as changed")
	}
	text, _ = rs.Compose([]string{"y"})
	if text != "y        " {
		t.Errorf("width not kept: %q", text)
	}
}

func TestShorten(t *testing.T) {
	if got := Shorten("/a/very/long/path/to/file.txt", 12); got != ".../file.txt" {
		t.Errorf("Shorten() = %q", got)
	}
	if got := Shorten("short", 12); got != "short" {
		t.Errorf("Shorten() = %q", got)
	}
}
