package progress

import (
	"fmt"
	"math"
	"time"

	"timemachine/cli/internal/protocol"
)

// FormatBytes renders n with a binary unit, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatSeconds renders a duration given in seconds, rounded to whole seconds.
func FormatSeconds(s float64) string {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return "-"
	}
	return (time.Duration(math.Round(s)) * time.Second).String()
}

// ProgressLine summarises a progress report on one line.
func ProgressLine(p protocol.BackupProgress) string {
	line := fmt.Sprintf("%5.1f%%  %d/%d files  %s/%s",
		p.PercentComplete, p.ProcessedFiles, p.TotalFiles,
		FormatBytes(p.ProcessedBytes), FormatBytes(p.TotalBytes))
	if p.Speed > 0 {
		line += fmt.Sprintf("  %s/s", FormatBytes(int64(p.Speed)))
	}
	if p.RemainingTime > 0 {
		line += "  eta " + FormatSeconds(p.RemainingTime)
	}
	if p.CurrentFile != "" {
		line += "  " + Shorten(p.CurrentFile, 48)
	}
	return line
}

// ResultLine summarises a completion report.
func ResultLine(r protocol.BackupResult) string {
	return fmt.Sprintf("backed up %d files (%s) in %s", r.FileCount, FormatBytes(r.Size), FormatSeconds(r.Duration))
}

// Shorten keeps the tail of s, which for paths is the informative end.
func Shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max || max < 4 {
		return s
	}
	return "..." + string(r[len(r)-max+3:])
}
