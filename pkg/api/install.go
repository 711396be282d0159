// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"context"
	"fmt"
	"os"

	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/engine"
)

// Install updates one device to the named release version, or to the
// newest installable release when version is empty.
func Install(ctx context.Context, cfg *config.Config, deviceID, version string, options ...Opt) error {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return err
	}
	return eng.Install(ctx, deviceID, version, opts.flags(), opts.Progress)
}

// InstallBlob writes a local payload file onto the device, bypassing
// the release index.
func InstallBlob(ctx context.Context, cfg *config.Config, deviceID, path string, options ...Opt) error {
	opts := getOpts(options...)
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read firmware payload %s: %w", path, err)
	}
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return err
	}
	return eng.InstallBlob(ctx, deviceID, payload, opts.flags(), opts.Progress)
}

// InstallBundle installs every component of a firmware bundle file
// onto the devices it targets, parents first.
func InstallBundle(ctx context.Context, cfg *config.Config, path string, options ...Opt) error {
	opts := getOpts(options...)
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read firmware bundle %s: %w", path, err)
	}
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return err
	}
	return eng.InstallBundle(ctx, blob, opts.flags(), opts.Progress)
}
