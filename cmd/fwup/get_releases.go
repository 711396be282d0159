// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

type getReleasesOptions struct {
	format string
}

func init() {
	opts := getReleasesOptions{
		format: "text",
	}
	cmd := &cobra.Command{
		Use:   "get-releases <device-id>",
		Short: "List every release published for the device, including downgrades",
		Run: func(cmd *cobra.Command, args []string) {
			doGetReleases(cmd, args[0], &opts)
		},
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Format the output. Values: [text | json]")
	rootCmd.AddCommand(cmd)
}

func doGetReleases(cmd *cobra.Command, deviceID string, opts *getReleasesOptions) {
	releases, err := api.GetReleases(cmd.Context(), config, deviceID)
	DieNotNil(err, "Failed to list releases")

	if opts.format == "json" {
		b, err := json.MarshalIndent(releases, "", "  ")
		DieNotNil(err, "Failed to marshal releases")
		fmt.Println(string(b))
		return
	}
	if len(releases) == 0 {
		fmt.Println("No releases published for this device")
		return
	}
	for _, rel := range releases {
		line := fmt.Sprintf("%-12s%s", rel.Version, rel.ID)
		if rel.Branch != "" {
			line += fmt.Sprintf(" (branch %s)", rel.Branch)
		}
		if rel.Urgency != "" {
			line += fmt.Sprintf(" [%s]", rel.Urgency)
		}
		fmt.Println(line)
		if rel.Summary != "" {
			fmt.Printf("%12s%s\n", "", rel.Summary)
		}
	}
}
