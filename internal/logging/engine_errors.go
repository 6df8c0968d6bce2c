// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	errs "timemachine/cli/internal/errors"

	"github.com/pterm/pterm"
)

// FormatEngineError formats an engine failure in a user-friendly way.
// stderr is the captured engine diagnostics, shown under the technical details.
func FormatEngineError(err error, stderr string) string {
	var builder strings.Builder

	kind := errs.KindOf(err)
	switch kind {
	case errs.SpawnFailed:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Backup Engine Not Found"))
		builder.WriteString("\n\n")
		builder.WriteString("The backup engine could not be started.\n")
		builder.WriteString("This usually happens when:\n")
		builder.WriteString("  • utm-core is not installed or not on PATH\n")
		builder.WriteString("  • The configured engine_path points to a missing file\n")
		builder.WriteString("  • The engine binary is not executable\n")

	case errs.NonZeroExit:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Backup Engine Failed"))
		builder.WriteString("\n\n")
		builder.WriteString("The backup engine ran but reported a failure.\n")
		builder.WriteString("Check the engine output below for the reason.\n")

	case errs.ResponseFormat:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Unexpected Engine Response"))
		builder.WriteString("\n\n")
		builder.WriteString("The backup engine finished but its output could not be understood.\n")
		builder.WriteString("This could mean:\n")
		builder.WriteString("  • The engine version does not match this client\n")
		builder.WriteString("  • The engine printed diagnostics to stdout\n")

	case errs.Canceled:
		builder.WriteString(pterm.NewStyle(pterm.FgYellow, pterm.Bold).Sprint("Operation Canceled"))
		builder.WriteString("\n\n")
		builder.WriteString("The engine process was stopped before it finished.\n")

	case errs.Rejected:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Request Rejected"))
		builder.WriteString("\n\n")
		builder.WriteString("The bridge refused this request because it asks for more than it is allowed to do.\n")

	case errs.Unavailable:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Bridge Unavailable"))
		builder.WriteString("\n\n")
		builder.WriteString("Could not reach the bridge service.\n")
		builder.WriteString("To fix this:\n")
		builder.WriteString("  • Run 'timemachine serve' in another terminal\n")
		builder.WriteString("  • Or drop --remote to run the engine directly\n")

	default:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Operation Failed"))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	if kind == errs.SpawnFailed {
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Set TIMEMACHINE_ENGINE or pass --engine with the path to utm-core"))
		builder.WriteString("\n")
	}

	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	}
	if s := strings.TrimSpace(stderr); s != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Engine output:\n" + Mask(s)))
	}

	return builder.String()
}

// PresentEngineError displays a formatted engine error
func PresentEngineError(err error, stderr string) {
	fmt.Println()
	fmt.Println(FormatEngineError(err, stderr))
	fmt.Println()
}
