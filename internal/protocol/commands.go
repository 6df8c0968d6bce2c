// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation names.
const (
	OpListProfiles  = "list-profiles"
	OpSaveProfile   = "save-profile"
	OpDeleteProfile = "delete-profile"
	OpStartBackup   = "start-backup"
	OpCancelBackup  = "cancel-backup"
	OpListBackups   = "list-backups"
	OpBackupDetails = "backup-details"
	OpBrowseBackup  = "browse-backup"
	OpStartRestore  = "start-restore"
	OpSystemInfo    = "system-info"
)

// Command is an operation name plus the argument vector sent to the engine.
// Values are passed through as given; the engine validates them.
type Command struct {
	Op   string
	Argv []string
}

// Mutating reports whether the operation changes engine state. Mutating
// operations never fall back to substitute data.
func (c Command) Mutating() bool {
	switch c.Op {
	case OpSaveProfile, OpDeleteProfile, OpStartBackup, OpCancelBackup, OpStartRestore:
		return true
	}
	return false
}

func (c Command) String() string { return c.Op }

func ListProfiles() Command {
	return Command{Op: OpListProfiles, Argv: []string{"--list-profiles"}}
}

// SaveProfile serialises p into the --profile-data argument.
func SaveProfile(p Profile) (Command, error) {
	if p.ExcludePaths == nil {
		p.ExcludePaths = []string{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return Command{}, fmt.Errorf("encode profile: %w", err)
	}
	return Command{Op: OpSaveProfile, Argv: []string{OpSaveProfile, "--profile-data", string(b)}}, nil
}

func DeleteProfile(id string) Command {
	return Command{Op: OpDeleteProfile, Argv: []string{OpDeleteProfile, "--profile-id", id}}
}

func StartBackup(profileID string, dryRun bool) Command {
	argv := []string{OpStartBackup, "--profile-id", profileID}
	if dryRun {
		argv = append(argv, "--dry-run")
	}
	return Command{Op: OpStartBackup, Argv: argv}
}

func CancelBackup(backupID string) Command {
	return Command{Op: OpCancelBackup, Argv: []string{OpCancelBackup, "--backup-id", backupID}}
}

func ListBackups(profileID string) Command {
	return Command{Op: OpListBackups, Argv: []string{OpListBackups, "--profile-id", profileID}}
}

func BackupDetails(backupID string) Command {
	return Command{Op: OpBackupDetails, Argv: []string{OpBackupDetails, "--backup-id", backupID}}
}

// BrowseBackup lists files inside a backup; an empty path means the root.
func BrowseBackup(backupID, path string) Command {
	if path == "" {
		path = "/"
	}
	return Command{Op: OpBrowseBackup, Argv: []string{OpBrowseBackup, "--backup-id", backupID, "--path", path}}
}

// StartRestore appends only the optional flags that are set.
func StartRestore(opts RestoreOptions) Command {
	argv := []string{OpStartRestore, "--profile-id", opts.ProfileID}
	if opts.BackupID != "" {
		argv = append(argv, "--backup-id", opts.BackupID)
	}
	if opts.TargetPath != "" {
		argv = append(argv, "--target-path", opts.TargetPath)
	}
	if len(opts.SelectedFiles) > 0 {
		argv = append(argv, "--files", strings.Join(opts.SelectedFiles, ","))
	}
	if opts.RestorePoint != "" {
		argv = append(argv, "--restore-point", opts.RestorePoint)
	}
	return Command{Op: OpStartRestore, Argv: argv}
}

func SystemInfoCommand() Command {
	return Command{Op: OpSystemInfo, Argv: []string{OpSystemInfo}}
}
