// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

type Detach struct{}

func (s *Detach) Name() ActionName { return "Detaching" }
func (s *Detach) Execute(ctx context.Context, installCtx *InstallContext) error {
	drv := installCtx.Device.Drv()
	if drv == nil {
		return errdefs.Wrapf(errdefs.ErrNotSupported,
			"device %s has no driver bound", installCtx.Device.Name)
	}
	detacher, ok := drv.(device.Detacher)
	if !ok {
		// Runtime-programmable device, nothing to switch.
		log.Debug().Str("device", installCtx.Device.ID).Msg("Device needs no detach")
		return nil
	}
	if err := detacher.Detach(ctx, installCtx.Device, installCtx.Progress.Child()); err != nil {
		return err
	}
	return installCtx.awaitReplug(ctx)
}
