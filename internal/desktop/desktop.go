// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package desktop reaches the user's desktop session: a native directory
// picker and the default URL handler. Both are external programs
// (zenity/kdialog, xdg-open/open) run with literal argument vectors.
package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"

	"github.com/pterm/pterm"
)

// Runner runs name with args and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Session implements the façade's desktop operations.
type Session struct {
	log      *pterm.Logger
	goos     string
	lookPath func(string) (string, error)
	run      Runner
}

// New returns a Session for the running OS.
func New(log *pterm.Logger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	return &Session{log: log, goos: runtime.GOOS, lookPath: exec.LookPath, run: run}
}

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && stderr.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), err
}

type picker struct {
	name string
	args []string
}

var linuxPickers = []picker{
	{name: "zenity", args: []string{"--file-selection", "--directory", "--title=Select backup directory"}},
	{name: "kdialog", args: []string{"--getexistingdirectory", "."}},
}

var darwinPicker = picker{
	name: "osascript",
	args: []string{"-e", `POSIX path of (choose folder with prompt "Select backup directory")`},
}

// SelectDirectory shows a directory picker. A dismissed dialog yields an
// empty slice and no error.
func (s *Session) SelectDirectory(ctx context.Context) ([]string, error) {
	p, err := s.picker()
	if err != nil {
		return nil, err
	}
	out, err := s.run(ctx, p.name, p.args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			s.log.Debug("directory selection canceled", s.log.Args("picker", p.name))
			return []string{}, nil
		}
		return nil, errs.Wrap(errs.Unavailable, "directory picker failed", err)
	}
	dir := strings.TrimRight(strings.TrimSpace(string(out)), "/")
	if dir == "" {
		return []string{}, nil
	}
	return []string{dir}, nil
}

func (s *Session) picker() (picker, error) {
	if s.goos == "darwin" {
		return darwinPicker, nil
	}
	for _, p := range linuxPickers {
		if _, err := s.lookPath(p.name); err == nil {
			return p, nil
		}
	}
	return picker{}, errs.New(errs.Unavailable, "no directory picker found (install zenity or kdialog)")
}

// OpenURL hands rawURL to the desktop's default handler. Callers validate
// the URL first.
func (s *Session) OpenURL(ctx context.Context, rawURL string) error {
	opener := "xdg-open"
	if s.goos == "darwin" {
		opener = "open"
	}
	if _, err := s.lookPath(opener); err != nil {
		return errs.Wrap(errs.Unavailable, opener+" not found", err)
	}
	s.log.Info("opening external URL", s.log.Args("url", logging.Mask(rawURL)))
	if _, err := s.run(ctx, opener, rawURL); err != nil {
		return errs.Wrap(errs.Unavailable, "open URL", err)
	}
	return nil
}
