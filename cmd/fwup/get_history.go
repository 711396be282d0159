// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

type getHistoryOptions struct {
	format string
}

func init() {
	opts := getHistoryOptions{
		format: "text",
	}
	cmd := &cobra.Command{
		Use:   "get-history",
		Short: "Show every recorded install attempt, oldest first",
		Run: func(cmd *cobra.Command, args []string) {
			doGetHistory(cmd, &opts)
		},
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Format the output. Values: [text | json]")
	rootCmd.AddCommand(cmd)
}

func doGetHistory(cmd *cobra.Command, opts *getHistoryOptions) {
	records, err := api.GetHistory(cmd.Context(), config)
	DieNotNil(err, "Failed to read install history")

	if opts.format == "json" {
		b, err := json.MarshalIndent(records, "", "  ")
		DieNotNil(err, "Failed to marshal install history")
		fmt.Println(string(b))
		return
	}
	if len(records) == 0 {
		fmt.Println("No install attempts recorded")
		return
	}
	for _, r := range records {
		printRecord(r)
	}
}

func printRecord(r api.Record) {
	fmt.Printf("%s  %s  %s -> %s  %s\n",
		r.CreatedAt.Format("2006-01-02 15:04:05"), r.DeviceName, r.OldVersion, r.NewVersion, r.Outcome)
	if r.ReleaseID != "" {
		fmt.Printf("    release:  %s\n", r.ReleaseID)
	}
	if r.Error != "" {
		fmt.Printf("    error:    %s\n", r.Error)
	}
	if r.Reported {
		fmt.Printf("    reported: yes\n")
	}
}
