// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"context"

	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/engine"
	"github.com/foundriesio/fwup/pkg/release"
)

// DeviceUpdates pairs a device with the releases it could move up to,
// newest first.
type DeviceUpdates struct {
	Device   *device.Device     `json:"device"`
	Releases []*release.Release `json:"releases"`
}

// GetUpdates lists, per device, the installable upgrades known to the
// release index. Devices with nothing to offer are omitted.
func GetUpdates(ctx context.Context, cfg *config.Config, options ...Opt) ([]DeviceUpdates, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	var out []DeviceUpdates
	for _, dev := range eng.GetDevices() {
		if opts.OnlyEmulated && !dev.HasFlag(device.FlagEmulated) {
			continue
		}
		rels, err := eng.GetUpgrades(dev.ID)
		if err != nil {
			return nil, err
		}
		if len(rels) == 0 {
			continue
		}
		out = append(out, DeviceUpdates{Device: dev.Snapshot(), Releases: rels})
	}
	return out, nil
}

// GetReleases lists every release targeting the device, including
// downgrades and the version already installed.
func GetReleases(ctx context.Context, cfg *config.Config, deviceID string, options ...Opt) ([]*release.Release, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	return eng.GetReleases(deviceID)
}
