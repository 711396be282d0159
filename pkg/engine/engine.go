// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/internal/db"
	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/plugin"
	"github.com/foundriesio/fwup/pkg/progress"
	"github.com/foundriesio/fwup/pkg/quirks"
	"github.com/foundriesio/fwup/pkg/release"
)

const defaultEngineVersion = "1.0.0"

type (
	// Engine owns the device registry, the release index and the
	// install machinery behind every caller-facing operation.
	Engine struct {
		cfg      *config.Config
		registry *device.Registry
		repo     *release.Repo
		quirkDB  *quirks.DB
		parser   release.ContainerParser
		plugins  map[string]plugin.Plugin
		coord    *Coordinator
		dbPath   string
		version  string
	}

	Options struct {
		// Plugins overrides the registered plugin constructors, used by
		// tests to inject pre-scripted device families. Constructors run
		// against the engine's own host so plugins see its registry.
		Plugins []plugin.Constructor
		Repo    *release.Repo
		Parser  release.ContainerParser
		Version string
	}

	Option func(*Options)
)

func WithPlugins(ctors ...plugin.Constructor) Option {
	return func(o *Options) { o.Plugins = append(o.Plugins, ctors...) }
}

func WithRepo(repo *release.Repo) Option {
	return func(o *Options) { o.Repo = repo }
}

func WithParser(parser release.ContainerParser) Option {
	return func(o *Options) { o.Parser = parser }
}

func WithVersion(version string) Option {
	return func(o *Options) { o.Version = version }
}

// New starts an engine: database and crash recovery first, then quirk
// loading, plugin coldplug and release-index resolution. A plugin that
// fails to enumerate is skipped with a warning rather than taking the
// whole engine down.
func New(ctx context.Context, cfg *config.Config, options ...Option) (*Engine, error) {
	opts := &Options{}
	for _, o := range options {
		o(opts)
	}

	dbPath := cfg.GetSqlDbPath()
	if err := db.InitializeDatabase(dbPath); err != nil {
		return nil, err
	}
	closed, err := history.CloseInterrupted(dbPath)
	if err != nil {
		return nil, err
	}
	if closed > 0 {
		log.Warn().Int("records", closed).Msg("Closed install attempts interrupted by a previous crash")
	}

	quirkDB, err := quirks.Load(cfg.GetQuirkDirs()...)
	if err != nil {
		return nil, err
	}

	registry := device.NewRegistry()
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		quirkDB:  quirkDB,
		parser:   opts.Parser,
		plugins:  map[string]plugin.Plugin{},
		coord:    NewCoordinator(registry),
		dbPath:   dbPath,
		version:  opts.Version,
	}
	if e.parser == nil {
		e.parser = release.BundleParser{}
	}
	if e.version == "" {
		e.version = defaultEngineVersion
	}

	host := &plugin.Host{Registry: registry, Config: cfg, Quirks: quirkDB}
	var plugs []plugin.Plugin
	if len(opts.Plugins) > 0 {
		for _, ctor := range opts.Plugins {
			plug, err := ctor(host)
			if err != nil {
				return nil, err
			}
			plugs = append(plugs, plug)
		}
	} else if plugs, err = plugin.NewAll(host); err != nil {
		return nil, err
	}
	for _, plug := range plugs {
		e.plugins[plug.Name()] = plug
		devs, err := plug.Coldplug(ctx)
		if err != nil {
			log.Warn().Err(err).Str("plugin", plug.Name()).Msg("Plugin enumeration failed")
			continue
		}
		for _, dev := range devs {
			registry.Add(dev)
		}
	}

	e.repo = opts.Repo
	if e.repo == nil {
		repo, err := release.LoadRepo(cfg.GetReleasesIndexPath())
		if err != nil {
			if !errdefs.IsNotFound(err) {
				return nil, err
			}
			log.Debug().Str("path", cfg.GetReleasesIndexPath()).Msg("No release index present")
			repo = release.NewRepo()
		}
		e.repo = repo
	}

	for _, dev := range registry.List() {
		if len(e.repo.ForDevice(dev)) > 0 {
			dev.AddFlag(device.FlagSupported)
		}
	}
	return e, nil
}

// Registry exposes the device registry for event subscription.
func (e *Engine) Registry() *device.Registry { return e.registry }

// Version reports the engine version used for engine requirements.
func (e *Engine) Version() string { return e.version }

// GetDevices lists every enumerated device.
func (e *Engine) GetDevices() []*device.Device { return e.registry.List() }

// GetDevice resolves one device by ID.
func (e *Engine) GetDevice(deviceID string) (*device.Device, error) {
	return e.registry.Get(deviceID)
}

// GetUpgrades lists the releases the device could move up to right
// now, newest first. Releases the checker rejects are filtered out.
func (e *Engine) GetUpgrades(deviceID string) ([]*release.Release, error) {
	dev, err := e.registry.Get(deviceID)
	if err != nil {
		return nil, err
	}
	devVersion, format := dev.GetVersion()
	var out []*release.Release
	for _, rel := range e.repo.ForDevice(dev) {
		if device.CompareVersions(rel.Version, devVersion, format) <= 0 {
			continue
		}
		if err := Check(&CheckRequest{
			Device: dev, Release: rel, Registry: e.registry, EngineVersion: e.version,
		}); err != nil {
			log.Debug().Err(err).Str("device", dev.ID).Str("release", rel.Version).
				Msg("Release filtered from upgrade list")
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// GetReleases lists every release targeting the device, newest first,
// including downgrades and the version already installed.
func (e *Engine) GetReleases(deviceID string) ([]*release.Release, error) {
	dev, err := e.registry.Get(deviceID)
	if err != nil {
		return nil, err
	}
	return e.repo.ForDevice(dev), nil
}

// Install updates the device to the named release version, or to the
// newest installable one when version is empty.
func (e *Engine) Install(ctx context.Context, deviceID, version string, flags InstallFlags, cb progress.Callback) error {
	dev, err := e.registry.Get(deviceID)
	if err != nil {
		return err
	}

	var rel *release.Release
	if version != "" {
		if rel, err = e.repo.ByVersion(dev, version); err != nil {
			return err
		}
	} else if rel, err = e.pickNewest(dev, flags); err != nil {
		return err
	}

	payload, err := rel.LoadPayload(flags.Has(InstallForce))
	if err != nil {
		return err
	}
	return e.installRelease(ctx, dev, rel, payload, flags, cb)
}

// pickNewest walks the device's releases newest first and returns the
// first one the checker accepts. When none is acceptable the newest
// release's rejection reason is surfaced, so "already at 1.2.0" wins
// over a branch mismatch buried further down the list.
func (e *Engine) pickNewest(dev *device.Device, flags InstallFlags) (*release.Release, error) {
	rels := e.repo.ForDevice(dev)
	if len(rels) == 0 {
		return nil, errdefs.Wrapf(errdefs.ErrNotFound, "no releases found for device %s", dev.Name)
	}
	var firstErr error
	for _, rel := range rels {
		err := Check(&CheckRequest{
			Device: dev, Release: rel, Flags: flags,
			Registry: e.registry, EngineVersion: e.version,
		})
		if err == nil {
			return rel, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// InstallBlob writes a caller-supplied payload directly, bypassing the
// release index. The payload's version is unknown up front, so the
// post-write verification trusts the device's own readback.
func (e *Engine) InstallBlob(ctx context.Context, deviceID string, payload []byte, flags InstallFlags, cb progress.Callback) error {
	dev, err := e.registry.Get(deviceID)
	if err != nil {
		return err
	}
	rel := &release.Release{
		ID:     "local-blob",
		Branch: dev.Branch,
		GUIDs:  dev.GUIDList(),
	}
	return e.installRelease(ctx, dev, rel, payload, flags|InstallForce, cb)
}

// installRelease is the single funnel every install path goes through:
// requirements check, per-device claim, then the state machine.
func (e *Engine) installRelease(ctx context.Context, dev *device.Device, rel *release.Release, payload []byte, flags InstallFlags, cb progress.Callback) error {
	if flags.Has(InstallOnlyEmulated) && !dev.HasFlag(device.FlagEmulated) {
		return errdefs.Wrapf(errdefs.ErrNotSupported,
			"device %s is real hardware and only emulated installs were allowed", dev.Name)
	}
	if err := Check(&CheckRequest{
		Device: dev, Release: rel, Flags: flags,
		Registry: e.registry, EngineVersion: e.version,
	}); err != nil {
		if !errdefs.IsNothingToDo(err) {
			dev.SetUpdateError(err.Error())
		}
		return err
	}
	if !e.registry.AcquireInstall(dev.ID) {
		return errdefs.Wrapf(errdefs.ErrBusy, "an install is already running for device %s", dev.Name)
	}
	defer e.registry.ReleaseInstall(dev.ID)

	prog := progress.New()
	prog.SetID(dev.ID)
	if cb != nil {
		prog.OnUpdate(cb)
	}
	installCtx := &InstallContext{
		Device:        dev,
		Release:       rel,
		Payload:       payload,
		Flags:         flags,
		Progress:      prog,
		Registry:      e.registry,
		Coordinator:   e.coord,
		Plugin:        e.plugins[dev.Plugin],
		DbPath:        e.dbPath,
		ReplugTimeout: e.cfg.GetReplugTimeout(),
		EngineVersion: e.version,
	}
	return NewInstallRunner().Run(ctx, installCtx)
}

// Activate promotes staged firmware on a device that wrote it without
// applying it.
func (e *Engine) Activate(ctx context.Context, deviceID string, cb progress.Callback) error {
	dev, err := e.registry.Get(deviceID)
	if err != nil {
		return err
	}
	activator, ok := dev.Drv().(device.Activator)
	if !ok {
		return errdefs.Wrapf(errdefs.ErrNotSupported, "device %s cannot activate firmware", dev.Name)
	}
	if !dev.HasFlag(device.FlagNeedsActivation) {
		return errdefs.Wrapf(errdefs.ErrNothingToDo, "device %s has no staged firmware", dev.Name)
	}
	prog := progress.New()
	prog.SetID(dev.ID)
	if cb != nil {
		prog.OnUpdate(cb)
	}
	prog.SetStatus(progress.StatusBusy)
	if err := activator.Activate(ctx, dev, prog); err != nil {
		return err
	}
	dev.SetUpdateState(device.UpdateStateSuccess)
	e.registry.NotifyChanged(dev)
	return nil
}

// Unlock lifts a vendor lock so the device becomes updatable.
func (e *Engine) Unlock(ctx context.Context, deviceID string) error {
	dev, err := e.registry.Get(deviceID)
	if err != nil {
		return err
	}
	unlocker, ok := dev.Drv().(device.Unlocker)
	if !ok {
		return errdefs.Wrapf(errdefs.ErrNotSupported, "device %s cannot be unlocked", dev.Name)
	}
	if err := unlocker.Unlock(ctx, dev); err != nil {
		return err
	}
	e.registry.NotifyChanged(dev)
	return nil
}

// GetHistory returns every recorded install attempt, oldest first.
func (e *Engine) GetHistory() ([]history.Record, error) {
	return history.GetAll(e.dbPath)
}

// GetResults returns the most recent install attempt for the device.
func (e *Engine) GetResults(deviceID string) (*history.Record, error) {
	return history.GetLastForDevice(e.dbPath, deviceID)
}

// ClearHistory erases all recorded attempts.
func (e *Engine) ClearHistory() error {
	return history.ClearAll(e.dbPath)
}

// MarkReported flags a history record as uploaded.
func (e *Engine) MarkReported(recordID string) error {
	return history.SetReported(e.dbPath, recordID, true)
}

// InstallBundle parses a firmware bundle, matches its components to
// present devices, and installs them parents first. A cycle in the
// declared device topology aborts before any device is touched; a
// member failure aborts the remainder of the bundle, since children
// frequently depend on their parent's new firmware.
func (e *Engine) InstallBundle(ctx context.Context, blob []byte, flags InstallFlags, cb progress.Callback) error {
	comps, err := e.parser.Parse(blob)
	if err != nil {
		return err
	}

	compByDevice := map[string]release.Component{}
	var devs []*device.Device
	for _, comp := range comps {
		for _, guid := range comp.Release.GUIDs {
			for _, dev := range e.registry.GetByGUID(guid) {
				if _, taken := compByDevice[dev.ID]; taken {
					log.Warn().Str("device", dev.ID).Str("component", comp.ID).
						Msg("Device already matched by another bundle component")
					continue
				}
				compByDevice[dev.ID] = comp
				devs = append(devs, dev)
			}
		}
	}
	if len(devs) == 0 {
		return errdefs.Wrap(errdefs.ErrNothingToDo, "bundle matches no present devices")
	}

	ordered, err := SortByTopology(devs)
	if err != nil {
		return err
	}

	e.coord.Plan(ordered)
	for i, dev := range ordered {
		comp := compByDevice[dev.ID]
		err := e.installRelease(ctx, dev, comp.Release, comp.Payload, flags, cb)
		if errdefs.IsNothingToDo(err) {
			// Already at the component's version; the member never
			// entered its group, so withdraw its reservation.
			e.coord.Discard(ctx, dev, e.plugins[dev.Plugin])
			continue
		}
		if err != nil {
			for _, rest := range ordered[i:] {
				e.coord.Discard(ctx, rest, e.plugins[rest.Plugin])
			}
			return fmt.Errorf("bundle component %s failed on device %s: %w", comp.ID, dev.Name, err)
		}
	}
	return nil
}
