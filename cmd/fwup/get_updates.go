// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

type getUpdatesOptions struct {
	format       string
	onlyEmulated bool
}

func init() {
	opts := getUpdatesOptions{
		format: "text",
	}
	cmd := &cobra.Command{
		Use:   "get-updates [<device-id>]",
		Short: "List the upgrades available for every device, or for just one",
		Run: func(cmd *cobra.Command, args []string) {
			doGetUpdates(cmd, &opts, args)
		},
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Format the output. Values: [text | json]")
	cmd.Flags().BoolVar(&opts.onlyEmulated, "only-emulated", false, "Consider only emulated devices")
	rootCmd.AddCommand(cmd)
}

func doGetUpdates(cmd *cobra.Command, opts *getUpdatesOptions, args []string) {
	updates, err := api.GetUpdates(cmd.Context(), config, api.WithOnlyEmulated(opts.onlyEmulated))
	DieNotNil(err, "Failed to check for updates")
	if len(args) == 1 {
		var filtered []api.DeviceUpdates
		for _, u := range updates {
			if u.Device.ID == args[0] {
				filtered = append(filtered, u)
			}
		}
		updates = filtered
	}

	if opts.format == "json" {
		b, err := json.MarshalIndent(updates, "", "  ")
		DieNotNil(err, "Failed to marshal updates")
		fmt.Println(string(b))
		return
	}
	if len(updates) == 0 {
		fmt.Println("No updates available")
		return
	}
	for _, u := range updates {
		fmt.Printf("%s (currently %s)\n", u.Device.Name, u.Device.Version)
		for _, rel := range u.Releases {
			line := fmt.Sprintf("  %-12s%s", rel.Version, rel.ID)
			if rel.Urgency != "" {
				line += fmt.Sprintf(" [%s]", rel.Urgency)
			}
			fmt.Println(line)
			if rel.Summary != "" {
				fmt.Printf("  %12s%s\n", "", rel.Summary)
			}
		}
		fmt.Println()
	}
}
