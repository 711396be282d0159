// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/engine"
)

type daemonOptions struct {
	runOnce      bool
	onlyEmulated bool
}

func init() {
	opts := daemonOptions{
		runOnce: false,
	}
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Poll for and install firmware updates until stopped",
		Run: func(cmd *cobra.Command, args []string) {
			doDaemon(cmd, &opts)
		},
		Args: cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Run a single update pass and exit.")
	_ = cmd.Flags().MarkHidden("run-once")
	cmd.Flags().BoolVar(&opts.onlyEmulated, "only-emulated", false, "Refuse to touch real hardware")
	rootCmd.AddCommand(cmd)
}

func (opts daemonOptions) pollingInterval() time.Duration {
	pollingSecStr := config.GetDefault("update.polling_seconds", "300")
	pollingSec, err := strconv.Atoi(pollingSecStr)
	if err != nil || pollingSec <= 0 {
		pollingSec = 300
		slog.Warn("Invalid value for update.polling_seconds. Using default value", "value", pollingSecStr, "default", pollingSec)
	}
	return time.Duration(pollingSec) * time.Second
}

func (opts daemonOptions) flags() engine.InstallFlags {
	flags := engine.InstallNone
	if opts.onlyEmulated {
		flags |= engine.InstallOnlyEmulated
	}
	return flags
}

func doDaemon(cmd *cobra.Command, opts *daemonOptions) {
	ctx := cmd.Context()
	interval := opts.pollingInterval()

	// One engine for the daemon's lifetime, so the registry keeps its
	// device identities and install claims across passes.
	eng, err := engine.New(ctx, config)
	DieNotNil(err, "Failed to start update engine")

	for {
		summary, err := eng.UpdateAll(ctx, opts.flags(), nil)
		if err != nil {
			slog.Error("Update pass failed", "error", err)
		} else {
			if n := len(summary.Updated); n > 0 {
				slog.Info("Devices updated", "count", n)
			}
			for _, r := range summary.Failed {
				slog.Error("Device update failed", "device", r.DeviceName, "error", r.Error)
			}
		}
		if opts.runOnce {
			slog.Debug("Run once mode, exiting")
			DieNotNil(err)
			return
		}
		slog.Info("Waiting before next update pass...", "interval", interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
