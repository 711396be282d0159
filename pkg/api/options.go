// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package api is the verb-level surface the CLI and embedding programs
// call. Every verb builds an engine from the given config, runs one
// operation and returns; long-lived daemons should hold an
// engine.Engine directly instead.
package api

import (
	"github.com/foundriesio/fwup/pkg/engine"
	"github.com/foundriesio/fwup/pkg/progress"
)

type (
	Opts struct {
		Force             bool
		AllowOlder        bool
		AllowReinstall    bool
		AllowBranchSwitch bool
		OnlyEmulated      bool
		NoHistory         bool
		Progress          progress.Callback
		// Devices narrows batch verbs to the named device IDs.
		Devices []string
		// EngineOptions are passed through to engine.New, used by tests
		// to inject scripted plugins and in-memory release repos.
		EngineOptions []engine.Option
	}
	Opt func(*Opts)
)

func WithForce(enabled bool) Opt {
	return func(o *Opts) {
		o.Force = enabled
	}
}

func WithAllowOlder(enabled bool) Opt {
	return func(o *Opts) {
		o.AllowOlder = enabled
	}
}

func WithAllowReinstall(enabled bool) Opt {
	return func(o *Opts) {
		o.AllowReinstall = enabled
	}
}

func WithAllowBranchSwitch(enabled bool) Opt {
	return func(o *Opts) {
		o.AllowBranchSwitch = enabled
	}
}

func WithOnlyEmulated(enabled bool) Opt {
	return func(o *Opts) {
		o.OnlyEmulated = enabled
	}
}

func WithNoHistory(enabled bool) Opt {
	return func(o *Opts) {
		o.NoHistory = enabled
	}
}

func WithDevices(deviceIDs ...string) Opt {
	return func(o *Opts) {
		o.Devices = append(o.Devices, deviceIDs...)
	}
}

func WithProgress(cb progress.Callback) Opt {
	return func(o *Opts) {
		o.Progress = cb
	}
}

func WithEngineOptions(options ...engine.Option) Opt {
	return func(o *Opts) {
		o.EngineOptions = append(o.EngineOptions, options...)
	}
}

func getOpts(options ...Opt) *Opts {
	opts := &Opts{}
	for _, o := range options {
		o(opts)
	}
	return opts
}

func (o *Opts) flags() engine.InstallFlags {
	flags := engine.InstallNone
	if o.Force {
		flags |= engine.InstallForce
	}
	if o.AllowOlder {
		flags |= engine.InstallAllowOlder
	}
	if o.AllowReinstall {
		flags |= engine.InstallAllowReinstall
	}
	if o.AllowBranchSwitch {
		flags |= engine.InstallAllowBranchSwitch
	}
	if o.OnlyEmulated {
		flags |= engine.InstallOnlyEmulated
	}
	if o.NoHistory {
		flags |= engine.InstallNoHistory
	}
	return flags
}
