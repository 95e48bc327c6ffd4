// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemdNotifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	t.Setenv("NOTIFY_SOCKET", path)

	n := NewSystemdNotifier(nil)
	assert.Equal(t, "systemd-notifier", n.Name())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	read := func() string {
		buf := make([]byte, 64)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, err := conn.Read(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}

	assert.Equal(t, "READY=1", read())
	cancel()
	assert.Equal(t, "STOPPING=1", read())
	assert.NoError(t, <-done)
}

func TestSystemdNotifierWithoutSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	var states []string
	n := NewSystemdNotifier(nil)
	n.notify = func(state string) (bool, error) {
		states = append(states, state)
		return false, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, n.Run(ctx))
	assert.Equal(t, []string{"READY=1", "STOPPING=1"}, states)
}
