// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package quirks layers per-hardware metadata overrides onto enumerated
// devices. A quirk file is an ini file whose section names are instance
// IDs or GUIDs and whose keys patch the matching device:
//
//	[USB\VID_273F&PID_1004]
//	Plugin = emulated
//	Flags = updatable,~internal
//	VersionFormat = triplet
package quirks

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	ini "gopkg.in/ini.v1"

	"github.com/foundriesio/fwup/pkg/device"
)

const fileSuffix = ".quirk"

// Supported keys within a quirk section.
const (
	KeyName          = "Name"
	KeyPlugin        = "Plugin"
	KeyVendor        = "Vendor"
	KeyProtocol      = "Protocol"
	KeyBranch        = "Branch"
	KeyFlags         = "Flags"
	KeyVersionFormat = "VersionFormat"
	KeyCompositeID   = "CompositeId"
)

type patch struct {
	key   string
	value string
}

// DB is the loaded view of every quirk file. Each matching section is
// kept as an ordered patch list so that a later file's `Flags = ~x`
// clears a flag an earlier file set instead of erasing the whole list.
// Lookups are case-insensitive on the section name.
type DB struct {
	sections map[string][]patch
}

// Load reads every *.quirk file under the given directories, in order;
// later directories take effect after earlier ones. Missing directories
// are skipped, unreadable files are logged and skipped.
func Load(dirs ...string) (*DB, error) {
	db := &DB{sections: map[string][]patch{}}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), fileSuffix) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(dir, name)
			cfg, err := ini.Load(path)
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("Can't parse quirk file")
				continue
			}
			db.append(cfg)
		}
	}
	return db, nil
}

func (db *DB) append(cfg *ini.File) {
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		id := strings.ToLower(sec.Name())
		for _, k := range sec.KeyStrings() {
			db.sections[id] = append(db.sections[id], patch{key: k, value: sec.Key(k).String()})
		}
	}
}

// Lookup returns the effective scalar value of a key for an instance ID
// or GUID, last writer wins.
func (db *DB) Lookup(id, key string) (string, bool) {
	patches, ok := db.sections[strings.ToLower(id)]
	if !ok {
		return "", false
	}
	var value string
	found := false
	for _, p := range patches {
		if p.key == key {
			value, found = p.value, true
		}
	}
	return value, found
}

// Len reports how many distinct sections are loaded.
func (db *DB) Len() int { return len(db.sections) }

// Apply patches the device with every section matching one of its
// instance IDs or GUIDs, instance IDs first. Within the Flags key a
// leading '~' clears the named flag instead of setting it.
func (db *DB) Apply(dev *device.Device) {
	ids := append(dev.Snapshot().InstanceIDs, dev.GUIDList()...)
	for _, id := range ids {
		patches, ok := db.sections[strings.ToLower(id)]
		if !ok {
			continue
		}
		for _, p := range patches {
			applyPatch(dev, p)
		}
		log.Debug().Str("device", dev.ID).Str("match", id).Msg("Applied quirk")
	}
}

func applyPatch(dev *device.Device, p patch) {
	switch p.key {
	case KeyName:
		dev.Name = p.value
	case KeyPlugin:
		dev.Plugin = p.value
	case KeyVendor:
		dev.Vendor = p.value
	case KeyProtocol:
		dev.Protocol = p.value
	case KeyBranch:
		dev.Branch = p.value
	case KeyVersionFormat:
		dev.VersionFormat = device.ParseVersionFormat(p.value)
	case KeyCompositeID:
		dev.CompositeID = p.value
	case KeyFlags:
		for _, tok := range strings.Split(p.value, ",") {
			tok = strings.TrimSpace(tok)
			if neg, ok := strings.CutPrefix(tok, "~"); ok {
				dev.RemoveFlag(device.ParseFlag(neg))
			} else {
				dev.AddFlag(device.ParseFlag(tok))
			}
		}
	default:
		log.Warn().Str("key", p.key).Msg("Unknown quirk key")
	}
}
