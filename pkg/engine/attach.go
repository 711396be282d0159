// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/pkg/device"
)

type Attach struct{}

func (s *Attach) Name() ActionName { return "Attaching" }
func (s *Attach) Execute(ctx context.Context, installCtx *InstallContext) error {
	drv := installCtx.Device.Drv()
	attacher, ok := drv.(device.Attacher)
	if !ok {
		log.Debug().Str("device", installCtx.Device.ID).Msg("Device needs no attach")
		return nil
	}
	if err := attacher.Attach(ctx, installCtx.Device, installCtx.Progress.Child()); err != nil {
		return err
	}
	return installCtx.awaitReplug(ctx)
}
