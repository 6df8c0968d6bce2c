// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package protocol defines the utm-core command contract: how each logical
// operation is turned into an argument vector and how the engine's stdout is
// read back. Data-returning operations print one JSON object; list-profiles
// prints "- <name>" lines; mutating operations signal success only through
// the exit code.
//
// The types in this package mirror the JSON the engine reads and writes. The
// engine owns the authoritative copies; the bridge only marshals them.
package protocol

// Retention holds how many snapshots of each age class the engine keeps.
type Retention struct {
	KeepDaily   int `json:"keepDaily"`
	KeepWeekly  int `json:"keepWeekly"`
	KeepMonthly int `json:"keepMonthly"`
}

// Profile is a named backup configuration as stored by the engine.
type Profile struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SourcePath        string    `json:"sourcePath"`
	DestinationPath   string    `json:"destinationPath"`
	ExcludePaths      []string  `json:"excludePaths"`
	CompressionLevel  int       `json:"compressionLevel"`
	EncryptionEnabled bool      `json:"encryptionEnabled"`
	ScheduleEnabled   bool      `json:"scheduleEnabled"`
	ScheduleFrequency string    `json:"scheduleFrequency"`
	ScheduleTime      string    `json:"scheduleTime"`
	Retention         Retention `json:"retention"`
}

// BackupStatus is the outcome recorded for a finished backup.
type BackupStatus string

const (
	BackupSuccess BackupStatus = "success"
	BackupError   BackupStatus = "error"
	BackupPartial BackupStatus = "partial"
)

// BackupListItem is one entry of a list-backups response.
type BackupListItem struct {
	ID           string       `json:"id"`
	ProfileID    string       `json:"profileId"`
	Timestamp    string       `json:"timestamp"`
	Size         int64        `json:"size"`
	FileCount    int64        `json:"fileCount"`
	Status       BackupStatus `json:"status"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// BackupProgress is the payload the engine emits after PROGRESS:.
type BackupProgress struct {
	CurrentFile     string  `json:"currentFile"`
	ProcessedFiles  int64   `json:"processedFiles"`
	TotalFiles      int64   `json:"totalFiles"`
	ProcessedBytes  int64   `json:"processedBytes"`
	TotalBytes      int64   `json:"totalBytes"`
	PercentComplete float64 `json:"percentComplete"`
	// Speed is in bytes per second.
	Speed float64 `json:"speed"`
	// RemainingTime is in seconds.
	RemainingTime float64 `json:"remainingTime"`
}

// BackupResult is the payload the engine emits after COMPLETE:.
type BackupResult struct {
	Success      bool    `json:"success"`
	Timestamp    string  `json:"timestamp"`
	Size         int64   `json:"size"`
	FileCount    int64   `json:"fileCount"`
	Duration     float64 `json:"duration"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

// RestoreOptions selects what start-restore brings back and where to.
type RestoreOptions struct {
	ProfileID     string
	BackupID      string
	TargetPath    string
	SelectedFiles []string
	RestorePoint  string
}

// FileItem is one entry of a browse-backup response.
type FileItem struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Modified string `json:"modified,omitempty"`
}

// IsDir reports whether the item is a directory.
func (f FileItem) IsDir() bool { return f.Type == "directory" || f.Type == "dir" }

// StorageInfo is disk usage in bytes for the backup destination.
type StorageInfo struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
}

// CPUInfo holds CPU usage in percent.
type CPUInfo struct {
	Usage float64 `json:"usage"`
}

// MemoryInfo holds memory usage in percent.
type MemoryInfo struct {
	UsagePercent float64 `json:"usagePercent"`
}

// SystemInfo is the system-info response.
type SystemInfo struct {
	Storage StorageInfo `json:"storage"`
	CPU     CPUInfo     `json:"cpu"`
	Memory  MemoryInfo  `json:"memory"`
	Uptime  string      `json:"uptime"`
	// Estimated marks fallback data that did not come from the engine.
	Estimated bool `json:"estimated,omitempty"`
}
