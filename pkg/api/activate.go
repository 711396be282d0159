// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"context"

	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/engine"
)

// Activate promotes firmware a device staged during an earlier install.
func Activate(ctx context.Context, cfg *config.Config, deviceID string, options ...Opt) error {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return err
	}
	return eng.Activate(ctx, deviceID, opts.Progress)
}

// Unlock lifts a vendor lock so the device becomes updatable.
func Unlock(ctx context.Context, cfg *config.Config, deviceID string, options ...Opt) error {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return err
	}
	return eng.Unlock(ctx, deviceID)
}
