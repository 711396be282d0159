// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

type updateOptions struct {
	installOptions
	format string
}

func init() {
	opts := updateOptions{
		format: "text",
	}
	cmd := &cobra.Command{
		Use:   "update [<device-id>...]",
		Short: "Update every device that has a newer installable release, parents first",
		Long: `Update every device that has a newer installable release, parents first.
Device IDs narrow the pass to just those devices.`,
		Run: func(cmd *cobra.Command, args []string) {
			doUpdate(cmd, &opts, args)
		},
		Args: cobra.ArbitraryArgs,
	}
	opts.ApplyToCmd(cmd)
	cmd.Flags().StringVar(&opts.format, "format", "text", "Format the output. Values: [text | json]")
	rootCmd.AddCommand(cmd)
}

func doUpdate(cmd *cobra.Command, opts *updateOptions, deviceIDs []string) {
	apiOpts := append(opts.apiOpts(), api.WithDevices(deviceIDs...))
	summary, err := api.Update(cmd.Context(), config, apiOpts...)
	DieNotNil(err, "Failed to update devices")

	if opts.format == "json" {
		b, err := json.MarshalIndent(summary, "", "  ")
		DieNotNil(err, "Failed to marshal update summary")
		fmt.Println(string(b))
	} else {
		printSummary(summary)
	}
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}

func printSummary(summary *api.UpdateSummary) {
	printBucket := func(title string, results []api.DeviceResult, line func(api.DeviceResult) string) {
		if len(results) == 0 {
			return
		}
		fmt.Println(title)
		for _, r := range results {
			fmt.Printf("  %s\n", line(r))
		}
	}
	printBucket("Updated:", summary.Updated, func(r api.DeviceResult) string {
		return fmt.Sprintf("%s: %s -> %s", r.DeviceName, r.Version, r.NewVersion)
	})
	printBucket("Up to date:", summary.UpToDate, func(r api.DeviceResult) string {
		return fmt.Sprintf("%s (%s)", r.DeviceName, r.Version)
	})
	printBucket("No update available:", summary.NoUpdate, func(r api.DeviceResult) string {
		return r.DeviceName
	})
	printBucket("Needs action:", summary.NeedsAction, func(r api.DeviceResult) string {
		return fmt.Sprintf("%s: %s", r.DeviceName, r.Error)
	})
	printBucket("Failed:", summary.Failed, func(r api.DeviceResult) string {
		return fmt.Sprintf("%s: %s", r.DeviceName, r.Error)
	})
}
