// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"context"

	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/engine"
)

// GetDevices enumerates every device the configured plugins can see and
// returns detached snapshots safe to hold after the call.
func GetDevices(ctx context.Context, cfg *config.Config, options ...Opt) ([]*device.Device, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	var out []*device.Device
	for _, dev := range eng.GetDevices() {
		if opts.OnlyEmulated && !dev.HasFlag(device.FlagEmulated) {
			continue
		}
		out = append(out, dev.Snapshot())
	}
	return out, nil
}

// GetDevice returns a snapshot of one device.
func GetDevice(ctx context.Context, cfg *config.Config, deviceID string, options ...Opt) (*device.Device, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	dev, err := eng.GetDevice(deviceID)
	if err != nil {
		return nil, err
	}
	return dev.Snapshot(), nil
}
