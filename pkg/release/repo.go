// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package release

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

// Repo is a local index of releases, loaded from a JSON file produced
// by whatever metadata pipeline feeds this host. Relative payload
// locations are resolved against the index file's directory.
type Repo struct {
	path     string
	releases []*Release
}

type repoIndex struct {
	Releases []*Release `json:"releases"`
}

// LoadRepo reads and validates the index at path. Unusable releases are
// skipped with a warning rather than failing the whole index.
func LoadRepo(path string) (*Repo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.Wrapf(errdefs.ErrNotFound, "release index %s", path)
		}
		return nil, err
	}
	var idx repoIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrInvalidData, "release index %s: %v", path, err)
	}

	dir := filepath.Dir(path)
	repo := &Repo{path: path}
	for _, rel := range idx.Releases {
		if err := rel.Validate(); err != nil {
			log.Warn().Err(err).Str("index", path).Msg("Skipping unusable release")
			continue
		}
		for i, loc := range rel.Locations {
			if !filepath.IsAbs(loc) {
				rel.Locations[i] = filepath.Join(dir, loc)
			}
		}
		repo.releases = append(repo.releases, rel)
	}
	return repo, nil
}

// NewRepo wraps an already-built release list, used by tests and by the
// bundle path where releases arrive parsed rather than from disk.
func NewRepo(releases ...*Release) *Repo {
	return &Repo{releases: releases}
}

// Path returns where the index was loaded from, or "" for in-memory repos.
func (r *Repo) Path() string { return r.path }

// All returns every usable release in the index.
func (r *Repo) All() []*Release {
	out := make([]*Release, len(r.releases))
	copy(out, r.releases)
	return out
}

// ForDevice returns the releases targeting the device, newest first
// under the device's version format.
func (r *Repo) ForDevice(dev *device.Device) []*Release {
	guids := dev.GUIDList()
	var out []*Release
	for _, rel := range r.releases {
		if rel.Matches(guids) {
			out = append(out, rel)
		}
	}
	_, format := dev.GetVersion()
	SortNewestFirst(out, format)
	return out
}

// ByVersion returns the release with the exact version for the device.
func (r *Repo) ByVersion(dev *device.Device, version string) (*Release, error) {
	for _, rel := range r.ForDevice(dev) {
		if rel.Version == version {
			return rel, nil
		}
	}
	return nil, errdefs.Wrapf(errdefs.ErrNotFound,
		"no release %s for device %s", version, dev.Name)
}
