// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package emulated is a device-family backend with no hardware behind
// it. Devices are declared as specs, optionally scripted to misbehave
// (busy bus, failed writes, wrong readback, replug cycles), which is
// what the engine's end-to-end tests and the --only-emulated CLI mode
// run against.
package emulated

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/plugin"
	"github.com/foundriesio/fwup/pkg/progress"
)

const (
	PluginName = "emulated"

	// DevicesPathKey configures a JSON file of device specs so the CLI
	// can run against emulated hardware.
	DevicesPathKey = "emulated.devices"

	defaultReplugDelay = 20 * time.Millisecond
)

func init() {
	plugin.Register(PluginName, func(host *plugin.Host) (plugin.Plugin, error) {
		return NewFromConfig(host)
	})
}

type (
	// Behavior scripts how the emulated device misbehaves.
	Behavior struct {
		// FailDetach/FailWrite/FailAttach abort the hook with the given
		// message.
		FailDetach string `json:"fail_detach,omitempty"`
		FailWrite  string `json:"fail_write,omitempty"`
		FailAttach string `json:"fail_attach,omitempty"`
		// BusyWrites makes the first N write transactions report a
		// transient busy bus before one succeeds.
		BusyWrites int `json:"busy_writes,omitempty"`
		// ReadbackVersion is what reload reports after a write instead
		// of the written version, simulating firmware that did not take.
		ReadbackVersion string `json:"readback_version,omitempty"`
		// ReplugOnDetach/ReplugOnAttach drop the device off the bus and
		// re-enumerate it after ReplugDelayMs.
		ReplugOnDetach bool `json:"replug_on_detach,omitempty"`
		ReplugOnAttach bool `json:"replug_on_attach,omitempty"`
		ReplugDelayMs  int  `json:"replug_delay_ms,omitempty"`
		// StageOnly stages the written firmware until an explicit
		// activate promotes it.
		StageOnly bool `json:"stage_only,omitempty"`
	}

	// DeviceSpec declares one emulated device.
	DeviceSpec struct {
		PhysicalID        string   `json:"physical_id"`
		Name              string   `json:"name"`
		VendorID          string   `json:"vendor_id,omitempty"`
		InstanceIDs       []string `json:"instance_ids"`
		Version           string   `json:"version"`
		VersionFormat     string   `json:"version_format,omitempty"`
		VersionBootloader string   `json:"version_bootloader,omitempty"`
		Branch            string   `json:"branch,omitempty"`
		Flags             string   `json:"flags,omitempty"`
		ParentPhysicalID  string   `json:"parent_physical_id,omitempty"`
		CompositeID       string   `json:"composite_id,omitempty"`
		Behavior          Behavior `json:"behavior,omitempty"`
	}

	// Plugin owns the emulated device family.
	Plugin struct {
		host  *plugin.Host
		specs []DeviceSpec

		mu       sync.Mutex
		states   map[string]*deviceState
		prepares map[string]int
		cleanups map[string]int
	}

	deviceState struct {
		mu            sync.Mutex
		spec          DeviceSpec
		current       string
		written       string
		staged        string
		busyLeft      int
		writeAttempts int
		replugs       int
	}

	driver struct {
		p  *Plugin
		st *deviceState
	}
)

// New builds the plugin from explicit specs.
func New(host *plugin.Host, specs ...DeviceSpec) *Plugin {
	return &Plugin{
		host:     host,
		specs:    specs,
		states:   map[string]*deviceState{},
		prepares: map[string]int{},
		cleanups: map[string]int{},
	}
}

// NewFromConfig builds the plugin from the JSON spec file named in the
// config, or with no devices when the key is unset.
func NewFromConfig(host *plugin.Host) (*Plugin, error) {
	p := New(host)
	if host.Config == nil {
		return p, nil
	}
	path := host.Config.Get(DevicesPathKey)
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read emulated device specs %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &p.specs); err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrInvalidData, "emulated device specs %s: %v", path, err)
	}
	return p, nil
}

func (p *Plugin) Name() string { return PluginName }

// Coldplug materializes every declared device and binds its driver.
func (p *Plugin) Coldplug(_ context.Context) ([]*device.Device, error) {
	var out []*device.Device
	for _, spec := range p.specs {
		if spec.PhysicalID == "" || len(spec.InstanceIDs) == 0 {
			return nil, errdefs.Wrapf(errdefs.ErrInvalidData,
				"emulated device %q needs a physical_id and at least one instance_id", spec.Name)
		}
		dev := device.New(spec.PhysicalID, spec.Name, PluginName, spec.InstanceIDs...)
		dev.Version = spec.Version
		dev.VersionBootloader = spec.VersionBootloader
		dev.VendorID = spec.VendorID
		dev.Branch = spec.Branch
		dev.CompositeID = spec.CompositeID
		if spec.ParentPhysicalID != "" {
			dev.ParentID = device.NewID(spec.ParentPhysicalID)
		}
		if spec.VersionFormat != "" {
			dev.VersionFormat = device.ParseVersionFormat(spec.VersionFormat)
		} else {
			dev.VersionFormat = device.VersionFormatPlain
		}
		flags := spec.Flags
		if flags == "" {
			flags = "updatable"
		}
		dev.Flags = device.ParseFlags(flags) | device.FlagEmulated

		st := &deviceState{spec: spec, current: spec.Version, busyLeft: spec.Behavior.BusyWrites}
		p.mu.Lock()
		p.states[dev.ID] = st
		p.mu.Unlock()
		dev.Bind(&driver{p: p, st: st})

		if p.host != nil && p.host.Quirks != nil {
			p.host.Quirks.Apply(dev)
		}
		out = append(out, dev)
	}
	return out, nil
}

// CompositePrepare runs once per composite group before its first
// member installs.
func (p *Plugin) CompositePrepare(_ context.Context, devs []*device.Device) error {
	if len(devs) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prepares[devs[0].CompositeID]++
	return nil
}

// CompositeCleanup runs once per composite group after its last member
// finishes.
func (p *Plugin) CompositeCleanup(_ context.Context, devs []*device.Device) error {
	if len(devs) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanups[devs[0].CompositeID]++
	return nil
}

// PrepareCount reports how many times the group's prepare hook ran.
func (p *Plugin) PrepareCount(compositeID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prepares[compositeID]
}

// CleanupCount reports how many times the group's cleanup hook ran.
func (p *Plugin) CleanupCount(compositeID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cleanups[compositeID]
}

// Rescript swaps the behavior script of a device mid-test.
func (p *Plugin) Rescript(deviceID string, b Behavior) {
	p.mu.Lock()
	st := p.states[deviceID]
	p.mu.Unlock()
	if st == nil {
		return
	}
	st.mu.Lock()
	st.spec.Behavior = b
	st.busyLeft = b.BusyWrites
	st.mu.Unlock()
}

// WriteAttempts reports how many write transactions the device saw,
// including ones that reported busy.
func (p *Plugin) WriteAttempts(deviceID string) int {
	p.mu.Lock()
	st := p.states[deviceID]
	p.mu.Unlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.writeAttempts
}

// Replugs reports how many replug cycles the device went through.
func (p *Plugin) Replugs(deviceID string) int {
	p.mu.Lock()
	st := p.states[deviceID]
	p.mu.Unlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.replugs
}

func (d *driver) PluginName() string { return PluginName }

func (d *driver) Detach(ctx context.Context, dev *device.Device, prog *progress.Progress) error {
	d.st.mu.Lock()
	behavior := d.st.spec.Behavior
	d.st.mu.Unlock()

	if behavior.FailDetach != "" {
		return fmt.Errorf("%s", behavior.FailDetach)
	}
	if dev.HasFlag(device.FlagIsBootloader) {
		return nil
	}
	prog.SetPercentage(100)
	if behavior.ReplugOnDetach {
		dev.AddFlag(device.FlagWaitForReplug)
		d.replugLater(dev, true)
	}
	return nil
}

func (d *driver) WriteFirmware(ctx context.Context, dev *device.Device, payload []byte, prog *progress.Progress) error {
	d.st.mu.Lock()
	behavior := d.st.spec.Behavior
	d.st.mu.Unlock()

	var retries uint = 3
	delay := time.Millisecond
	if d.p.host != nil && d.p.host.Config != nil {
		retries = d.p.host.Config.GetBusRetries()
		delay = d.p.host.Config.GetBusRetryDelay()
	}
	err := plugin.RetryTransient(ctx, "open flash transaction", retries, delay, func() error {
		d.st.mu.Lock()
		defer d.st.mu.Unlock()
		d.st.writeAttempts++
		if d.st.busyLeft > 0 {
			d.st.busyLeft--
			return fmt.Errorf("%w: %w", errdefs.ErrBusy, plugin.ErrTransient)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if behavior.FailWrite != "" {
		return fmt.Errorf("%s", behavior.FailWrite)
	}

	version := strings.TrimSpace(string(payload))
	if version == "" {
		return errdefs.Wrap(errdefs.ErrInvalidData, "payload carries no version")
	}
	chunks := 4
	for i := 1; i <= chunks; i++ {
		prog.SetPercentage(uint(i * 100 / chunks))
	}

	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if behavior.StageOnly {
		d.st.staged = version
		dev.AddFlag(device.FlagNeedsActivation)
	} else {
		d.st.written = version
	}
	return nil
}

func (d *driver) Attach(ctx context.Context, dev *device.Device, prog *progress.Progress) error {
	d.st.mu.Lock()
	behavior := d.st.spec.Behavior
	if behavior.FailAttach != "" {
		d.st.mu.Unlock()
		return fmt.Errorf("%s", behavior.FailAttach)
	}
	if d.st.written != "" {
		d.st.current = d.st.written
		d.st.written = ""
	}
	d.st.mu.Unlock()

	prog.SetPercentage(100)
	if behavior.ReplugOnAttach {
		dev.AddFlag(device.FlagWaitForReplug)
		d.replugLater(dev, false)
	} else {
		dev.RemoveFlag(device.FlagIsBootloader)
	}
	return nil
}

func (d *driver) Reload(ctx context.Context, dev *device.Device) (string, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if d.st.spec.Behavior.ReadbackVersion != "" {
		return d.st.spec.Behavior.ReadbackVersion, nil
	}
	return d.st.current, nil
}

func (d *driver) Activate(ctx context.Context, dev *device.Device, prog *progress.Progress) error {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if d.st.staged == "" {
		return errdefs.Wrap(errdefs.ErrNothingToDo, "no staged firmware to activate")
	}
	d.st.current = d.st.staged
	d.st.staged = ""
	dev.RemoveFlag(device.FlagNeedsActivation)
	dev.SetVersion(d.st.current)
	prog.SetPercentage(100)
	return nil
}

func (d *driver) Unlock(ctx context.Context, dev *device.Device) error {
	if !dev.HasFlag(device.FlagLocked) {
		return errdefs.Wrap(errdefs.ErrNothingToDo, "device is not locked")
	}
	dev.RemoveFlag(device.FlagLocked)
	dev.AddFlag(device.FlagUpdatable)
	return nil
}

// replugLater simulates the device dropping off the bus and coming back
// under a new bus address, in bootloader mode after a detach and back
// in runtime mode after an attach.
func (d *driver) replugLater(dev *device.Device, bootloader bool) {
	d.st.mu.Lock()
	spec := d.st.spec
	delay := time.Duration(spec.Behavior.ReplugDelayMs) * time.Millisecond
	d.st.mu.Unlock()
	if delay == 0 {
		delay = defaultReplugDelay
	}
	if d.p.host == nil || d.p.host.Registry == nil {
		log.Warn().Str("device", dev.ID).Msg("No registry to replug against")
		return
	}
	go func() {
		time.Sleep(delay)
		reg := d.p.host.Registry
		reg.Remove(dev.ID)

		physical := spec.PhysicalID
		name := spec.Name
		if bootloader {
			physical += "/dfu"
			name += " (bootloader)"
		}
		fresh := device.New(physical, name, PluginName, spec.InstanceIDs...)
		if bootloader {
			fresh.AddFlag(device.FlagIsBootloader)
		}
		fresh.Bind(&driver{p: d.p, st: d.st})

		d.st.mu.Lock()
		d.st.replugs++
		d.st.mu.Unlock()
		reg.Add(fresh)
	}()
}
