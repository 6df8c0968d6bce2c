package progress

import (
	"timemachine/cli/internal/protocol"
	"timemachine/cli/internal/stream"
)

// Apply folds a marker event into t. It returns false for events that carry
// no progress information or whose payload does not decode.
func Apply(t *Tracker, ev stream.Event) bool {
	switch ev.Kind {
	case stream.KindProgress:
		var p protocol.BackupProgress
		if err := ev.Payload.Decode(&p); err != nil {
			return false
		}
		t.Update(ev.RequestID, p)
		return true
	case stream.KindCompletion:
		var r protocol.BackupResult
		if err := ev.Payload.Decode(&r); err != nil {
			return false
		}
		t.Complete(ev.RequestID, r)
		return true
	}
	return false
}
