// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"context"

	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/engine"
)

type (
	UpdateSummary = engine.UpdateSummary
	DeviceResult  = engine.DeviceResult
)

// Update moves every updatable device to its newest installable
// release, parents before children. WithDevices narrows the batch to
// the named devices. Per-device failures land in the summary; the
// error is reserved for the batch itself.
func Update(ctx context.Context, cfg *config.Config, options ...Opt) (*UpdateSummary, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	return eng.UpdateAll(ctx, opts.flags(), opts.Progress, opts.Devices...)
}
