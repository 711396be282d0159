// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package plugin defines the boundary between the engine and the
// device-family drivers: enumeration, optional composite group hooks,
// and the bounded retry policy for transient bus errors.
package plugin

import (
	"context"

	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/quirks"
)

type (
	// Plugin is one device-family backend. Coldplug enumerates the
	// hardware the plugin owns and binds a driver to each device; the
	// per-device install hooks live on the driver (see pkg/device).
	Plugin interface {
		Name() string
		Coldplug(ctx context.Context) ([]*device.Device, error)
	}

	// CompositePreparer runs once per composite group before the first
	// member's install starts.
	CompositePreparer interface {
		CompositePrepare(ctx context.Context, devs []*device.Device) error
	}

	// CompositeCleaner runs once per composite group after the last
	// member's install finishes.
	CompositeCleaner interface {
		CompositeCleanup(ctx context.Context, devs []*device.Device) error
	}

	// Host is what the engine hands a plugin at construction time.
	Host struct {
		Registry *device.Registry
		Config   *config.Config
		Quirks   *quirks.DB
	}

	// Constructor builds a plugin against the host.
	Constructor func(host *Host) (Plugin, error)
)
