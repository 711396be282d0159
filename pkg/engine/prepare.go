// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

type Prepare struct{}

var ErrPrepareFailed = errors.New("prepare failed")

func (s *Prepare) Name() ActionName { return "Preparing" }
func (s *Prepare) Execute(ctx context.Context, installCtx *InstallContext) error {
	if len(installCtx.Payload) == 0 {
		return errdefs.Wrapf(errdefs.ErrInvalidData,
			"release %s has an empty payload", installCtx.Release.Version)
	}
	if installCtx.Coordinator != nil {
		if err := installCtx.Coordinator.Enter(ctx, installCtx.Device, installCtx.Plugin); err != nil {
			return fmt.Errorf("%w: %s", ErrPrepareFailed, err.Error())
		}
		installCtx.entered = true
	}
	return nil
}
