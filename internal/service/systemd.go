// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

// SystemdNotifier tells systemd the daemon is ready once every service is
// initialized, and that it is stopping when the run group is interrupted.
// Outside of a Type=notify unit it does nothing.
type SystemdNotifier struct {
	logger *slog.Logger
	notify func(state string) (bool, error)
}

var _ Runner = (*SystemdNotifier)(nil)

func NewSystemdNotifier(logger *slog.Logger) *SystemdNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemdNotifier{
		logger: logger.With("service", "systemd-notifier"),
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

func (n *SystemdNotifier) Name() string {
	return "systemd-notifier"
}

func (n *SystemdNotifier) Run(ctx context.Context) error {
	n.send(daemon.SdNotifyReady)
	<-ctx.Done()
	n.send(daemon.SdNotifyStopping)
	return nil
}

func (n *SystemdNotifier) send(state string) {
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.logger.Warn("Failed to notify systemd", "state", state, "error", err)
	case !sent:
		n.logger.Debug("Not running under systemd", "state", state)
	default:
		n.logger.Debug("Notified systemd", "state", state)
	}
}
