// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// ExposedMode returns the permission bits of the config file at path.
// Windows guards files with ACLs, so the file is never reported exposed.
func ExposedMode(path string) (fs.FileMode, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}
	return info.Mode().Perm(), false, nil
}

// WarnInsecurePermissions only traces on Windows.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check skipped on Windows", "path", path)
	}
}
