// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

var (
	ctorMu sync.Mutex
	ctors  = map[string]Constructor{}
)

// Register makes a plugin constructor available under its name, usually
// from the plugin package's init. Registering the same name twice panics.
func Register(name string, ctor Constructor) {
	ctorMu.Lock()
	defer ctorMu.Unlock()
	if ctor == nil {
		panic("plugin: Register with nil constructor")
	}
	if _, dup := ctors[name]; dup {
		panic(fmt.Sprintf("plugin: Register called twice for %q", name))
	}
	ctors[name] = ctor
}

// Available returns the registered plugin names, sorted.
func Available() []string {
	ctorMu.Lock()
	defer ctorMu.Unlock()
	names := make([]string, 0, len(ctors))
	for name := range ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named plugin against the host.
func New(name string, host *Host) (Plugin, error) {
	ctorMu.Lock()
	ctor, ok := ctors[name]
	ctorMu.Unlock()
	if !ok {
		return nil, errdefs.Wrapf(errdefs.ErrNotFound, "plugin %q is not registered", name)
	}
	return ctor(host)
}

// NewAll constructs every registered plugin.
func NewAll(host *Host) ([]Plugin, error) {
	var plugins []Plugin
	for _, name := range Available() {
		p, err := New(name, host)
		if err != nil {
			return nil, fmt.Errorf("failed to construct plugin %s: %w", name, err)
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}
