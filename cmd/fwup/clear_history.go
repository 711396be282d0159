// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Erase every recorded install attempt",
		Run: func(cmd *cobra.Command, args []string) {
			doClearHistory(cmd)
		},
		Args: cobra.NoArgs,
	}
	rootCmd.AddCommand(cmd)
}

func doClearHistory(cmd *cobra.Command) {
	DieNotNil(api.ClearHistory(cmd.Context(), config), "Failed to clear install history")
	log.Info().Msgf("Install history cleared")
}
