// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

type (
	// Config is the layered TOML configuration. Each path may be a file
	// or a directory of *.toml files; later paths override earlier ones
	// key by key.
	Config struct {
		trees []*toml.Tree
		paths []string
	}
)

const (
	StorageDirKey    = "storage.path"
	SqlDbKey         = "storage.sqldb_path"
	ReleasesIndexKey = "storage.releases_index"
	QuirkDirsKey     = "quirks.dirs"
	ReplugTimeoutKey = "update.replug_timeout" // seconds
	BusRetriesKey    = "update.bus_retries"
	BusRetryDelayKey = "update.bus_retry_delay" // milliseconds

	StorageDefaultDir            = "/var/lib/fwup"
	SqlDbDefaultFilename         = "fwup.db"
	ReleasesIndexDefaultFilename = "releases.json"

	ReplugTimeoutDefaultSec = 45
	MinReplugTimeoutSec     = 5
	MaxReplugTimeoutSec     = 600

	BusRetriesDefault      = 3
	MaxBusRetries          = 10
	BusRetryDelayDefaultMs = 500
)

// DefaultConfigOrder is searched when the caller does not name config
// paths explicitly.
var DefaultConfigOrder = []string{
	"/usr/lib/fwup/conf.d",
	"/etc/fwup",
	"/var/lib/fwup/fwup.toml",
}

// DefaultQuirkDirs is used when quirks.dirs is not configured.
var DefaultQuirkDirs = []string{
	"/usr/share/fwup/quirks.d",
	"/etc/fwup/quirks.d",
}

// NewConfig loads TOML from the given paths. A missing path is skipped;
// a present but unparsable file is an error.
func NewConfig(tomlConfigPaths []string) (*Config, error) {
	if len(tomlConfigPaths) == 0 {
		return nil, fmt.Errorf("config: no TOML paths provided")
	}
	cfg := &Config{}
	for _, p := range tomlConfigPaths {
		info, err := os.Stat(p)
		if err != nil {
			slog.Debug("config path not present, skipping", "path", p)
			continue
		}
		files := []string{p}
		if info.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, fmt.Errorf("config: failed to read %s: %w", p, err)
			}
			files = files[:0]
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".toml") {
					files = append(files, filepath.Join(p, e.Name()))
				}
			}
			sort.Strings(files)
		}
		for _, f := range files {
			tree, err := toml.LoadFile(f)
			if err != nil {
				return nil, fmt.Errorf("config: failed to load TOML from %s: %w", f, err)
			}
			cfg.trees = append(cfg.trees, tree)
			cfg.paths = append(cfg.paths, f)
		}
	}
	return cfg, nil
}

// Paths returns the files that were actually loaded, in load order.
func (c *Config) Paths() []string { return c.paths }

// Has reports whether any loaded file sets the dotted key.
func (c *Config) Has(key string) bool {
	for _, tree := range c.trees {
		if tree.Has(key) {
			return true
		}
	}
	return false
}

// Get returns the value of the dotted key from the highest-precedence
// file that sets it, or "".
func (c *Config) Get(key string) string {
	for i := len(c.trees) - 1; i >= 0; i-- {
		if !c.trees[i].Has(key) {
			continue
		}
		switch v := c.trees[i].Get(key).(type) {
		case string:
			return v
		case int64:
			return strconv.FormatInt(v, 10)
		case bool:
			return strconv.FormatBool(v)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// GetDefault is Get with a fallback for unset keys.
func (c *Config) GetDefault(key, def string) string {
	if c.Has(key) {
		return c.Get(key)
	}
	return def
}

func (c *Config) GetStorageDir() string {
	return c.GetDefault(StorageDirKey, StorageDefaultDir)
}

func (c *Config) GetSqlDbPath() string {
	if c.Has(SqlDbKey) {
		return c.Get(SqlDbKey)
	}
	return filepath.Join(c.GetStorageDir(), SqlDbDefaultFilename)
}

func (c *Config) GetReleasesIndexPath() string {
	if c.Has(ReleasesIndexKey) {
		return c.Get(ReleasesIndexKey)
	}
	return filepath.Join(c.GetStorageDir(), ReleasesIndexDefaultFilename)
}

// GetQuirkDirs returns the quirk search directories, comma-separated in
// the config, lowest precedence first.
func (c *Config) GetQuirkDirs() []string {
	if !c.Has(QuirkDirsKey) {
		return append([]string{}, DefaultQuirkDirs...)
	}
	var dirs []string
	for _, d := range strings.Split(c.Get(QuirkDirsKey), ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// GetReplugTimeout returns how long to wait for a device to re-enumerate
// after detach or attach. Out-of-range values fall back to the default.
func (c *Config) GetReplugTimeout() time.Duration {
	s := c.GetDefault(ReplugTimeoutKey, strconv.Itoa(ReplugTimeoutDefaultSec))
	sec, err := strconv.Atoi(s)
	if err != nil {
		slog.Warn("invalid replug timeout; using default", "value", s, "default", ReplugTimeoutDefaultSec)
		return ReplugTimeoutDefaultSec * time.Second
	}
	if sec < MinReplugTimeoutSec || sec > MaxReplugTimeoutSec {
		slog.Warn("replug timeout out of range; using default", "value", sec, "default", ReplugTimeoutDefaultSec)
		return ReplugTimeoutDefaultSec * time.Second
	}
	return time.Duration(sec) * time.Second
}

// GetBusRetries returns how many times a plugin may retry a transient
// bus error before escalating.
func (c *Config) GetBusRetries() uint {
	s := c.GetDefault(BusRetriesKey, strconv.Itoa(BusRetriesDefault))
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxBusRetries {
		slog.Warn("invalid bus retry count; using default", "value", s, "default", BusRetriesDefault)
		return BusRetriesDefault
	}
	return uint(n)
}

// GetBusRetryDelay returns the fixed delay between transient-error
// retries.
func (c *Config) GetBusRetryDelay() time.Duration {
	s := c.GetDefault(BusRetryDelayKey, strconv.Itoa(BusRetryDelayDefaultMs))
	ms, err := strconv.Atoi(s)
	if err != nil || ms < 0 {
		slog.Warn("invalid bus retry delay; using default", "value", s, "default", BusRetryDelayDefaultMs)
		return BusRetryDelayDefaultMs * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
