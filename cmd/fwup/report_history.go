// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

type reportHistoryOptions struct {
	output string
}

func init() {
	opts := reportHistoryOptions{}
	cmd := &cobra.Command{
		Use:   "report-history",
		Short: "Export the install attempts not reported yet and mark them reported",
		Run: func(cmd *cobra.Command, args []string) {
			doReportHistory(cmd, &opts)
		},
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to this file instead of stdout")
	rootCmd.AddCommand(cmd)
}

func doReportHistory(cmd *cobra.Command, opts *reportHistoryOptions) {
	records, err := api.ReportHistory(cmd.Context(), config)
	DieNotNil(err, "Failed to collect unreported attempts")
	if len(records) == 0 {
		DieNotNilWithCode(errdefs.Wrap(errdefs.ErrNothingToDo, "no install attempts require reporting"), 2)
	}

	b, err := json.MarshalIndent(records, "", "  ")
	DieNotNil(err, "Failed to marshal report")
	if opts.output == "" {
		fmt.Println(string(b))
		return
	}
	DieNotNil(os.WriteFile(opts.output, b, 0644), "Failed to write report")
	fmt.Printf("Reported %d install attempts to %s\n", len(records), opts.output)
}
