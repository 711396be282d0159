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
		Use:   "unlock <device-id>",
		Short: "Lift the vendor lock so the device becomes updatable",
		Run: func(cmd *cobra.Command, args []string) {
			doUnlock(cmd, args[0])
		},
		Args: cobra.ExactArgs(1),
	}
	rootCmd.AddCommand(cmd)
}

func doUnlock(cmd *cobra.Command, deviceID string) {
	err := api.Unlock(cmd.Context(), config, deviceID)
	DieInstallErr(err, "Failed to unlock device")
	log.Info().Msgf("Device unlocked")
}
