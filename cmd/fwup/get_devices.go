// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fwup/pkg/api"
	"github.com/foundriesio/fwup/pkg/device"
)

type getDevicesOptions struct {
	format       string
	showAll      bool
	onlyEmulated bool
}

func init() {
	opts := getDevicesOptions{
		format: "text",
	}
	cmd := &cobra.Command{
		Use:   "get-devices",
		Short: "List every device the configured plugins can see",
		Run: func(cmd *cobra.Command, args []string) {
			doGetDevices(cmd, &opts)
		},
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Format the output. Values: [text | json]")
	cmd.Flags().BoolVar(&opts.showAll, "all", false, "Include devices hidden from default listings")
	cmd.Flags().BoolVar(&opts.onlyEmulated, "only-emulated", false, "List only emulated devices")
	rootCmd.AddCommand(cmd)
}

func doGetDevices(cmd *cobra.Command, opts *getDevicesOptions) {
	devs, err := api.GetDevices(cmd.Context(), config, api.WithOnlyEmulated(opts.onlyEmulated))
	DieNotNil(err, "Failed to enumerate devices")

	var listed []*device.Device
	for _, dev := range devs {
		if dev.HasFlag(device.FlagInternal) && !opts.showAll {
			continue
		}
		listed = append(listed, dev)
	}

	if opts.format == "json" {
		b, err := json.MarshalIndent(listed, "", "  ")
		DieNotNil(err, "Failed to marshal devices")
		fmt.Println(string(b))
		return
	}
	if len(listed) == 0 {
		fmt.Println("No devices found")
		return
	}
	for _, dev := range listed {
		printDevice(dev)
	}
}

func printDevice(dev *device.Device) {
	fmt.Println(dev.Name)
	fmt.Printf("  Device ID:    %s\n", dev.ID)
	fmt.Printf("  Plugin:       %s\n", dev.Plugin)
	if dev.VendorID != "" {
		fmt.Printf("  Vendor ID:    %s\n", dev.VendorID)
	}
	if dev.Version != "" {
		fmt.Printf("  Version:      %s (%s)\n", dev.Version, dev.VersionFormat)
	}
	if dev.VersionBootloader != "" {
		fmt.Printf("  Bootloader:   %s\n", dev.VersionBootloader)
	}
	if dev.Branch != "" {
		fmt.Printf("  Branch:       %s\n", dev.Branch)
	}
	fmt.Printf("  Flags:        %s\n", dev.Flags)
	if dev.Problems != device.ProblemNone {
		fmt.Printf("  Problems:     %s\n", dev.Problems)
	}
	if dev.UpdateState != device.UpdateStateUnknown {
		fmt.Printf("  Update state: %s\n", dev.UpdateState)
	}
	if dev.UpdateError != "" {
		fmt.Printf("  Update error: %s\n", dev.UpdateError)
	}
	for _, guid := range dev.GUIDs {
		fmt.Printf("  GUID:         %s\n", guid)
	}
	fmt.Println()
}
