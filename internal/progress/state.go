// Package progress tracks running backups from engine marker events and
// formats them for a live terminal area. Jobs are keyed by the request id of
// the engine call that reports them.
package progress

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"timemachine/cli/internal/protocol"
)

// Tracker holds the state of every job it has seen.
type Tracker struct {
	// Active maps request ids to their latest progress report
	Active map[string]protocol.BackupProgress
	// Completed maps request ids to the engine's completion report
	Completed map[string]protocol.BackupResult
	// Failed maps request ids to failure reasons
	Failed map[string]string
	// Order preserves the sequence in which jobs first reported
	Order []string
	mu    sync.Mutex
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		Active:    make(map[string]protocol.BackupProgress),
		Completed: make(map[string]protocol.BackupResult),
		Failed:    make(map[string]string),
	}
}

func (t *Tracker) seen(id string) bool {
	_, a := t.Active[id]
	_, c := t.Completed[id]
	_, f := t.Failed[id]
	return a || c || f
}

// Update records a progress report. Reports for a finished job are ignored.
func (t *Tracker) Update(id string, p protocol.BackupProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seen(id) {
		t.Order = append(t.Order, id)
	}
	if _, done := t.Completed[id]; done {
		return
	}
	if _, done := t.Failed[id]; done {
		return
	}
	t.Active[id] = p
}

// Complete records the engine's completion report. A report with
// Success=false counts as a failure.
func (t *Tracker) Complete(id string, r protocol.BackupResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seen(id) {
		t.Order = append(t.Order, id)
	}
	delete(t.Active, id)
	if !r.Success {
		reason := r.ErrorMessage
		if reason == "" {
			reason = "backup failed"
		}
		t.Failed[id] = reason
		return
	}
	t.Completed[id] = r
}

// Fail marks a job failed without a completion report, e.g. when the engine
// call itself failed.
func (t *Tracker) Fail(id, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seen(id) {
		t.Order = append(t.Order, id)
	}
	delete(t.Active, id)
	t.Failed[id] = reason
}

// Counts returns active, completed and failed job counts.
func (t *Tracker) Counts() (active, completed, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Active), len(t.Completed), len(t.Failed)
}

// HasFailures returns true if any job has failed.
func (t *Tracker) HasFailures() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Failed) > 0
}

// Result returns the completion report for id, if any.
func (t *Tracker) Result(id string) (protocol.BackupResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.Completed[id]
	return r, ok
}

// Lines renders one line per job in first-seen order. frame picks the
// spinner glyph for active jobs.
func (t *Tracker) Lines(frame string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := make([]string, 0, len(t.Order))
	for _, id := range t.Order {
		if p, ok := t.Active[id]; ok {
			lines = append(lines, frame+" "+ProgressLine(p))
			continue
		}
		if r, ok := t.Completed[id]; ok {
			lines = append(lines, "✓ "+ResultLine(r))
			continue
		}
		if reason, ok := t.Failed[id]; ok {
			lines = append(lines, "✗ failed: "+reason)
		}
	}
	return lines
}

// Snapshot returns the ids of active jobs, sorted.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.Active))
	for id := range t.Active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RenderState holds the UI rendering state for the live progress area.
type RenderState struct {
	// FrameIdx is the current animation frame index for spinners
	FrameIdx int
	// MaxLineLen tracks the maximum line length to prevent flickering
	MaxLineLen int
	// LastRendered caches the last rendered content to avoid unnecessary updates
	LastRendered string
	mu           sync.Mutex
}

// NewRenderState creates a new RenderState with default values.
func NewRenderState() *RenderState { return &RenderState{} }

// NextFrame advances the animation and returns the glyph to draw.
func (rs *RenderState) NextFrame(frames []string) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.FrameIdx++
	return frames[rs.FrameIdx%len(frames)]
}

// Compose pads lines to a stable width and joins them. It returns false when
// the text equals what was last rendered.
func (rs *RenderState) Compose(lines []string) (string, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > rs.MaxLineLen {
			rs.MaxLineLen = n
		}
	}
	padded := make([]string, len(lines))
	for i, l := range lines {
		if pad := rs.MaxLineLen - utf8.RuneCountInString(l); pad > 0 {
			l += strings.Repeat(" ", pad)
		}
		padded[i] = l
	}
	text := strings.Join(padded, "\n")
	if text == rs.LastRendered {
		return text, false
	}
	rs.LastRendered = text
	return text, true
}
