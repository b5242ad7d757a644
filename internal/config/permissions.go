// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// exposedBits are the read bits that let users other than the owner see a
// literal item.secret.
const exposedBits fs.FileMode = 0o044

// ExposedMode returns the permission bits of the config file at path and
// whether users other than the owner can read it.
func ExposedMode(path string) (fs.FileMode, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}
	perm := info.Mode().Perm()
	return perm, perm&exposedBits != 0, nil
}

// WarnInsecurePermissions logs a warning when other users can read the
// config file at path. It never fails.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	perm, exposed, err := ExposedMode(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if exposed {
		slog.Warn("config file has insecure permissions, item.secret is readable by other users",
			"path", path,
			"mode", perm,
			"recommended", "0600",
		)
	}
}
