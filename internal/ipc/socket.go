// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"os"
	"path/filepath"
)

const (
	socketEnv     = "ERD_SOCKET"
	runtimeDirEnv = "XDG_RUNTIME_DIR"
	socketName    = "erd.sock"
	fallbackDir   = "/tmp"
)

// SocketPath returns configured if set, else $ERD_SOCKET, else erd.sock in
// $XDG_RUNTIME_DIR or /tmp
func SocketPath(configured string) string {
	if configured != "" {
		return configured
	}
	if path, ok := os.LookupEnv(socketEnv); ok && path != "" {
		return path
	}
	if dir, ok := os.LookupEnv(runtimeDirEnv); ok && dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(fallbackDir, socketName)
}
