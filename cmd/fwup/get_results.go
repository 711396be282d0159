// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

type getResultsOptions struct {
	format string
}

func init() {
	opts := getResultsOptions{
		format: "text",
	}
	cmd := &cobra.Command{
		Use:   "get-results <device-id>",
		Short: "Show the most recent install attempt for the device",
		Run: func(cmd *cobra.Command, args []string) {
			doGetResults(cmd, args[0], &opts)
		},
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Format the output. Values: [text | json]")
	rootCmd.AddCommand(cmd)
}

func doGetResults(cmd *cobra.Command, deviceID string, opts *getResultsOptions) {
	record, err := api.GetResults(cmd.Context(), config, deviceID)
	DieNotNil(err, "Failed to read install results")

	if opts.format == "json" {
		b, err := json.MarshalIndent(record, "", "  ")
		DieNotNil(err, "Failed to marshal install results")
		fmt.Println(string(b))
		return
	}
	printRecord(*record)
}
