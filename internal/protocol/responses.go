// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/stream"
)

// ProfilePrefix starts every profile line of a list-profiles response.
const ProfilePrefix = "- "

// ParseProfileNames extracts profile names from list-profiles output. Lines
// are trimmed before the prefix check, so the engine's indented "  - name"
// form matches too. No matching lines is an empty result, not an error.
func ParseProfileNames(stdout string) []string {
	names := []string{}
	for _, line := range strings.Split(stdout, "\n") {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(t, ProfilePrefix) {
			continue
		}
		if name := strings.TrimSpace(t[len(ProfilePrefix):]); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Payload returns stdout with marker lines removed. JSON responses are read
// from this text so progress output does not corrupt them. A marker quoted
// inside a JSON string does not make its line a marker line.
func Payload(stdout string) string {
	if !strings.Contains(stdout, stream.ProgressMarker) && !strings.Contains(stdout, stream.CompletionMarker) {
		return strings.TrimSpace(stdout)
	}
	var keep []string
	for _, line := range strings.Split(stdout, "\n") {
		if _, _, marker := stream.FindMarker(line); marker {
			continue
		}
		keep = append(keep, line)
	}
	return strings.TrimSpace(strings.Join(keep, "\n"))
}

// decode reads exactly one JSON value from the payload of stdout into v.
func decode(op, stdout string, v any) error {
	payload := Payload(stdout)
	if payload == "" {
		return errs.New(errs.ResponseFormat, fmt.Sprintf("empty response from %s command", op))
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ResponseFormat, fmt.Sprintf("invalid response format from %s command", op), err)
	}
	if rest := strings.TrimSpace(payload[dec.InputOffset():]); rest != "" {
		return errs.New(errs.ResponseFormat, fmt.Sprintf("unexpected trailing output from %s command", op))
	}
	return nil
}

// ParseStartBackup returns the backupId of a start-backup response.
func ParseStartBackup(stdout string) (string, error) {
	var resp struct {
		BackupID string `json:"backupId"`
	}
	if err := decode(OpStartBackup, stdout, &resp); err != nil {
		return "", err
	}
	if resp.BackupID == "" {
		return "", errs.New(errs.ResponseFormat, "start-backup response has no backupId")
	}
	return resp.BackupID, nil
}

// ParseStartRestore returns the restoreId of a start-restore response.
func ParseStartRestore(stdout string) (string, error) {
	var resp struct {
		RestoreID string `json:"restoreId"`
	}
	if err := decode(OpStartRestore, stdout, &resp); err != nil {
		return "", err
	}
	if resp.RestoreID == "" {
		return "", errs.New(errs.ResponseFormat, "start-restore response has no restoreId")
	}
	return resp.RestoreID, nil
}

// ParseBackupList reads {backups: [...]}. A missing backups key is a format
// error; an empty array is not.
func ParseBackupList(stdout string) ([]BackupListItem, error) {
	var resp struct {
		Backups *[]BackupListItem `json:"backups"`
	}
	if err := decode(OpListBackups, stdout, &resp); err != nil {
		return nil, err
	}
	if resp.Backups == nil {
		return nil, errs.New(errs.ResponseFormat, "list-backups response has no backups field")
	}
	return *resp.Backups, nil
}

// ParseBackupDetails returns the backup-details object as-is.
func ParseBackupDetails(stdout string) (map[string]any, error) {
	var resp map[string]any
	if err := decode(OpBackupDetails, stdout, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errs.New(errs.ResponseFormat, "backup-details response is not an object")
	}
	return resp, nil
}

// ParseBrowse reads {items: [...]}.
func ParseBrowse(stdout string) ([]FileItem, error) {
	var resp struct {
		Items *[]FileItem `json:"items"`
	}
	if err := decode(OpBrowseBackup, stdout, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return nil, errs.New(errs.ResponseFormat, "browse-backup response has no items field")
	}
	return *resp.Items, nil
}

// ParseSystemInfo reads a system-info response.
func ParseSystemInfo(stdout string) (SystemInfo, error) {
	var info SystemInfo
	if err := decode(OpSystemInfo, stdout, &info); err != nil {
		return SystemInfo{}, err
	}
	info.Estimated = false
	return info, nil
}
