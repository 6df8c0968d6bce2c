package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"timemachine/cli/internal/progress"
	"timemachine/cli/internal/terminal"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

// braille spinner frames similar to docker CLI
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// reportedError marks an error the command already showed to the user, and
// carries the exit status the process should end with.
type reportedError struct {
	err  error
	code int
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func markReported(err error, code int) error {
	if code <= 0 {
		code = 1
	}
	return &reportedError{err: err, code: code}
}

func reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

func exitCode(err error) int {
	var r *reportedError
	if errors.As(err, &r) {
		return r.code
	}
	return 1
}

// startInlineSpinner draws frames followed by text on one line until the
// returned function is called, which erases the line. Non-terminal output
// gets no spinner.
func startInlineSpinner(w io.Writer, text string, interval time.Duration) func() {
	if !terminal.IsInteractive() {
		return func() {}
	}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], text)
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], text)
				i++
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
	}
}

// progressArea is a live pterm area showing every tracked job, redrawn on a
// ticker so spinners keep moving between engine reports.
type progressArea struct {
	tracker *progress.Tracker
	render  *progress.RenderState
	area    *pterm.AreaPrinter
	stop    chan struct{}
	wg      sync.WaitGroup
}

func startProgressArea(tracker *progress.Tracker) *progressArea {
	pa := &progressArea{tracker: tracker, render: progress.NewRenderState(), stop: make(chan struct{})}
	if !terminal.IsInteractive() {
		return pa
	}
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return pa
	}
	pa.area = area
	pa.wg.Add(1)
	go func() {
		defer pa.wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				pa.redraw()
			case <-pa.stop:
				return
			}
		}
	}()
	return pa
}

func (pa *progressArea) redraw() {
	frame := pa.render.NextFrame(spinnerFrames)
	lines := pa.tracker.Lines(frame)
	if len(lines) == 0 {
		lines = []string{frame + " waiting for the engine"}
	}
	if text, changed := pa.render.Compose(lines); changed {
		pa.area.Update(text)
	}
}

// Stop removes the area; final lines are printed by the caller.
func (pa *progressArea) Stop() {
	if pa.area == nil {
		return
	}
	close(pa.stop)
	pa.wg.Wait()
	pa.area.Stop()
	pa.area = nil
	cursor.Show()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func bulletList(items []string) error {
	bullets := make([]pterm.BulletListItem, len(items))
	for i, s := range items {
		bullets[i] = pterm.BulletListItem{Level: 0, Text: s}
	}
	return pterm.DefaultBulletList.WithItems(bullets).Render()
}
