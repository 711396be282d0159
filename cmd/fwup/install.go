// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
)

type installOptions struct {
	force             bool
	allowOlder        bool
	allowReinstall    bool
	allowBranchSwitch bool
	onlyEmulated      bool
}

func (opts *installOptions) ApplyToCmd(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&opts.force, "force", false, "Relax soft requirement and checksum checks")
	cmd.Flags().BoolVar(&opts.allowOlder, "allow-older", false, "Permit downgrading to an older release")
	cmd.Flags().BoolVar(&opts.allowReinstall, "allow-reinstall", false, "Permit reinstalling the current version")
	cmd.Flags().BoolVar(&opts.allowBranchSwitch, "allow-branch-switch", false, "Permit switching to another firmware branch")
	cmd.Flags().BoolVar(&opts.onlyEmulated, "only-emulated", false, "Refuse to touch real hardware")
}

func (opts *installOptions) apiOpts() []api.Opt {
	return []api.Opt{
		api.WithForce(opts.force),
		api.WithAllowOlder(opts.allowOlder),
		api.WithAllowReinstall(opts.allowReinstall),
		api.WithAllowBranchSwitch(opts.allowBranchSwitch),
		api.WithOnlyEmulated(opts.onlyEmulated),
		api.WithProgress(renderProgress()),
	}
}

func init() {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:   "install <device-id> [<version>]",
		Short: "Install a release onto the device, the newest installable one if no version is given",
		Run: func(cmd *cobra.Command, args []string) {
			version := ""
			if len(args) > 1 {
				version = args[1]
			}
			doInstall(cmd, args[0], version, &opts)
		},
		Args: cobra.RangeArgs(1, 2),
	}
	opts.ApplyToCmd(cmd)
	rootCmd.AddCommand(cmd)
}

func doInstall(cmd *cobra.Command, deviceID, version string, opts *installOptions) {
	err := api.Install(cmd.Context(), config, deviceID, version, opts.apiOpts()...)
	DieInstallErr(err, "Failed to install firmware")
	log.Info().Msgf("Install operation complete")
}
