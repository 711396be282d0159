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
		Use:   "activate <device-id>",
		Short: "Make firmware staged by an earlier install take effect",
		Run: func(cmd *cobra.Command, args []string) {
			doActivate(cmd, args[0])
		},
		Args: cobra.ExactArgs(1),
	}
	rootCmd.AddCommand(cmd)
}

func doActivate(cmd *cobra.Command, deviceID string) {
	err := api.Activate(cmd.Context(), config, deviceID, api.WithProgress(renderProgress()))
	DieInstallErr(err, "Failed to activate firmware")
	log.Info().Msgf("Activation complete")
}
