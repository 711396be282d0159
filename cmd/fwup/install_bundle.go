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
		Use:   "install-bundle <bundle-file>",
		Short: "Install every component of a firmware bundle onto the devices it targets, parents first",
		Run: func(cmd *cobra.Command, args []string) {
			doInstallBundle(cmd, args[0], &opts)
		},
		Args: cobra.ExactArgs(1),
	}
	opts.ApplyToCmd(cmd)
	rootCmd.AddCommand(cmd)
}

func doInstallBundle(cmd *cobra.Command, path string, opts *installOptions) {
	err := api.InstallBundle(cmd.Context(), config, path, opts.apiOpts()...)
	DieInstallErr(err, "Failed to install firmware bundle")
	log.Info().Msgf("Bundle install complete")
}
