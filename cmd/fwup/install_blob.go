// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

func init() {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:   "install-blob <device-id> <payload-file>",
		Short: "Write a local firmware payload onto the device, bypassing the release index",
		Run: func(cmd *cobra.Command, args []string) {
			doInstallBlob(cmd, args[0], args[1], &opts)
		},
		Args: cobra.ExactArgs(2),
	}
	opts.ApplyToCmd(cmd)
	rootCmd.AddCommand(cmd)
}

func doInstallBlob(cmd *cobra.Command, deviceID, path string, opts *installOptions) {
	err := api.InstallBlob(cmd.Context(), config, deviceID, path, opts.apiOpts()...)
	DieInstallErr(err, "Failed to install firmware payload")
	log.Info().Msgf("Install operation complete")
}
