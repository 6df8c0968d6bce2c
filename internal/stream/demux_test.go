package stream

import (
	"reflect"
	"strings"
	"testing"

	"timemachine/cli/internal/logging"
)

func collect(t *testing.T) (*Demux, *[]Event) {
	t.Helper()
	var got []Event
	d := NewDemux("req-1", func(ev Event) { got = append(got, ev) }, logging.Discard())
	return d, &got
}

func TestDemuxClassifiesLines(t *testing.T) {
	d, got := collect(t)
	_, _ = d.Write([]byte("Scanning files...\nPROGRESS:{\"filesProcessed\":5}\nCOMPLETE:{\"success\":true}\n"))

	if len(*got) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(*got), *got)
	}
	if ev := (*got)[0]; ev.Kind != KindStdout || ev.Text != "Scanning files...\n" || ev.RequestID != "req-1" {
		t.Errorf("event 0 = %+v", ev)
	}
	progress := (*got)[1]
	if progress.Kind != KindProgress {
		t.Fatalf("event 1 kind = %v, want progress", progress.Kind)
	}
	if n, ok := progress.Payload.Int("filesProcessed"); !ok || n != 5 {
		t.Errorf("filesProcessed = %d, %v; want 5", n, ok)
	}
	if ev := (*got)[2]; ev.Kind != KindCompletion || ev.Payload.Fields["success"] != true {
		t.Errorf("event 2 = %+v", ev)
	}
}

func TestDemuxProgressNotRelayedAsStdout(t *testing.T) {
	d, got := collect(t)
	_, _ = d.Write([]byte("PROGRESS:{\"filesProcessed\":5}\n"))
	d.Flush()

	progress := 0
	for _, ev := range *got {
		switch ev.Kind {
		case KindProgress:
			progress++
		case KindStdout:
			t.Errorf("marker line relayed as stdout: %q", ev.Text)
		}
	}
	if progress != 1 {
		t.Errorf("progress events = %d, want exactly 1", progress)
	}
}

func TestDemuxReassemblesSplitMarker(t *testing.T) {
	d, got := collect(t)
	chunks := []string{"PRO", "GRESS:{\"files", "Processed\":7}", "\nplain ", "tail"}
	for _, c := range chunks {
		_, _ = d.Write([]byte(c))
	}
	if len(*got) != 1 || (*got)[0].Kind != KindProgress {
		t.Fatalf("before flush got %+v, want one progress event", *got)
	}
	if n, _ := (*got)[0].Payload.Int("filesProcessed"); n != 7 {
		t.Errorf("filesProcessed = %d, want 7", n)
	}

	d.Flush()
	if len(*got) != 2 || (*got)[1].Kind != KindStdout || (*got)[1].Text != "plain tail" {
		t.Errorf("after flush got %+v", *got)
	}
	d.Flush()
	if len(*got) != 2 {
		t.Errorf("second flush emitted again: %+v", *got)
	}
}

func TestDemuxMarkerMidLineAndCRLF(t *testing.T) {
	d, got := collect(t)
	_, _ = d.Write([]byte("[engine] PROGRESS: {\"percentComplete\":12.5}\r\n"))
	if len(*got) != 1 || (*got)[0].Kind != KindProgress {
		t.Fatalf("got %+v", *got)
	}
	var p struct {
		PercentComplete float64 `json:"percentComplete"`
	}
	if err := (*got)[0].Payload.Decode(&p); err != nil || p.PercentComplete != 12.5 {
		t.Errorf("Decode() = %+v, %v", p, err)
	}
	if _, ok := (*got)[0].Payload.Int("percentComplete"); ok {
		t.Error("Int() should reject fractional numbers")
	}
}

func TestDemuxDropsMalformedMarkers(t *testing.T) {
	tests := []string{
		"PROGRESS:{not json\n",
		"COMPLETE:\n",
		"PROGRESS:[1,2,3]\n",
		"COMPLETE:null\n",
	}
	for _, line := range tests {
		t.Run(strings.TrimSpace(line), func(t *testing.T) {
			d, got := collect(t)
			n, err := d.Write([]byte(line + "after\n"))
			if err != nil || n != len(line)+len("after\n") {
				t.Fatalf("Write() = %d, %v", n, err)
			}
			want := []Event{{Kind: KindStdout, RequestID: "req-1", Text: "after\n"}}
			if !reflect.DeepEqual(*got, want) {
				t.Errorf("got %+v, want %+v", *got, want)
			}
		})
	}
}

func TestDemuxEarliestMarkerWins(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Kind
	}{
		{name: "completion quoting progress", line: `COMPLETE:{"success":true,"note":"PROGRESS: 100%"}`, want: KindCompletion},
		{name: "progress quoting completion", line: `PROGRESS:{"currentFile":"COMPLETE: notes.txt"}`, want: KindProgress},
		{name: "json mentioning a marker", line: `{"id":"b1","log":"COMPLETE: 120 files"}`, want: KindStdout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, got := collect(t)
			_, _ = d.Write([]byte(tt.line + "\n"))
			if len(*got) != 1 || (*got)[0].Kind != tt.want {
				t.Fatalf("got %+v, want one %v event", *got, tt.want)
			}
		})
	}
}

func TestDemuxOverlongLine(t *testing.T) {
	d, got := collect(t)
	big := strings.Repeat("x", MaxLineBytes+1)
	_, _ = d.Write([]byte(big))
	if len(*got) != 1 || len((*got)[0].Text) != len(big) {
		t.Fatalf("overlong line not relayed")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindStdout, KindStderr, KindProgress, KindCompletion, KindTrigger} {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Error("ParseKind accepted unknown name")
	}
}
