// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package progress implements the hierarchical progress tree the engine and
// device drivers report through. A node declares weighted named steps up
// front; each step is completed exactly once, in order, and child nodes roll
// their percentage up into the step that spawned them. Consumers observe a
// deduplicated stream of (status, percentage) pairs via a callback, so a UI
// never sees progress move backwards.
package progress

import (
	"log/slog"
	"sync"
)

// Status is the coarse state a consumer renders next to the percentage.
type Status int

const (
	StatusUnknown Status = iota
	StatusIdle
	StatusLoading
	StatusDetaching
	StatusWriting
	StatusVerifying
	StatusRestarting
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusDetaching:
		return "detaching"
	case StatusWriting:
		return "writing"
	case StatusVerifying:
		return "verifying"
	case StatusRestarting:
		return "restarting"
	case StatusBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Callback receives every distinct (status, percentage) pair emitted by the
// root of a progress tree. Percentage is 0..100.
type Callback func(status Status, percentage uint)

type step struct {
	status Status
	weight uint
	name   string
}

// Progress is one node of the tree. The zero value is not usable; call New.
type Progress struct {
	mu      sync.Mutex
	id      string
	status  Status
	steps   []step
	cur     int
	percent uint
	child   *Progress
	parent  *Progress

	// emission state, root node only
	cb          Callback
	lastStatus  Status
	lastPercent uint
	emittedOnce bool
}

// New returns an empty root node.
func New() *Progress {
	return &Progress{status: StatusUnknown}
}

// SetID labels the node for debug logs, typically the call site.
func (p *Progress) SetID(id string) {
	p.mu.Lock()
	p.id = id
	p.mu.Unlock()
}

// OnUpdate registers the consumer callback on the root node. Child nodes
// bubble into their root, so registering on a child has no effect.
func (p *Progress) OnUpdate(cb Callback) {
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
}

// AddStep declares the next step with its status, relative weight and an
// optional name. All steps must be declared before the first StepDone.
func (p *Progress) AddStep(status Status, weight uint, name string) {
	p.mu.Lock()
	if weight == 0 {
		weight = 1
	}
	p.steps = append(p.steps, step{status: status, weight: weight, name: name})
	if len(p.steps) == 1 {
		p.status = status
	}
	p.mu.Unlock()
	p.emit()
}

// Steps returns how many steps are declared on this node.
func (p *Progress) Steps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps)
}

// StepName returns the name of the step currently in flight, or "".
func (p *Progress) StepName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur >= len(p.steps) {
		return ""
	}
	return p.steps[p.cur].name
}

// Child returns a node scoped to the step currently in flight. Percentage
// reported on the child contributes the current step's weight share to this
// node. Requesting a child again for the same step returns a fresh node.
func (p *Progress) Child() *Progress {
	c := New()
	p.mu.Lock()
	if p.cur < len(p.steps) {
		c.status = p.steps[p.cur].status
	}
	c.parent = p
	p.child = c
	p.mu.Unlock()
	return c
}

// StepDone completes the step currently in flight and advances to the next
// one. Completing past the declared list is logged and ignored so a buggy
// driver cannot make the percentage overflow or regress.
func (p *Progress) StepDone() {
	p.mu.Lock()
	if p.cur >= len(p.steps) {
		id := p.id
		p.mu.Unlock()
		slog.Warn("progress step completed past the declared list", "id", id)
		return
	}
	p.cur++
	p.child = nil
	if p.cur < len(p.steps) {
		p.status = p.steps[p.cur].status
	}
	p.recomputeLocked(0)
	p.mu.Unlock()
	p.emit()
}

// SetStatus overrides the coarse status without touching the percentage.
func (p *Progress) SetStatus(status Status) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	p.emit()
}

// SetPercentage reports direct completion on a node with no declared steps,
// clamped to 0..100. On a node with steps it is ignored; such nodes derive
// their percentage from StepDone and child reports only.
func (p *Progress) SetPercentage(pct uint) {
	if pct > 100 {
		pct = 100
	}
	p.mu.Lock()
	if len(p.steps) > 0 {
		p.mu.Unlock()
		return
	}
	if pct < p.percent {
		// never move backwards; a driver re-reporting a lower value is
		// collapsed into the latest high-water mark
		pct = p.percent
	}
	p.percent = pct
	parent := p.parent
	p.mu.Unlock()
	if parent != nil {
		parent.childReport(pct)
	}
	p.emit()
}

// Percentage returns the rolled-up completion of this node.
func (p *Progress) Percentage() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

// CurrentStatus returns the status of the step in flight.
func (p *Progress) CurrentStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Finish completes any remaining steps, or forces 100% on a stepless node.
func (p *Progress) Finish() {
	p.mu.Lock()
	if len(p.steps) == 0 {
		p.percent = 100
		parent := p.parent
		p.mu.Unlock()
		if parent != nil {
			parent.childReport(100)
		}
		p.emit()
		return
	}
	p.cur = len(p.steps)
	p.child = nil
	p.recomputeLocked(0)
	p.mu.Unlock()
	p.emit()
}

func (p *Progress) childReport(childPct uint) {
	p.mu.Lock()
	p.recomputeLocked(childPct)
	p.mu.Unlock()
	p.emit()
}

// recomputeLocked folds finished-step weights plus the in-flight child
// fraction into p.percent. Caller holds p.mu.
func (p *Progress) recomputeLocked(childPct uint) {
	if len(p.steps) == 0 {
		return
	}
	var total, done uint
	for i, s := range p.steps {
		total += s.weight
		if i < p.cur {
			done += s.weight
		}
	}
	scaled := done * 100
	if p.cur < len(p.steps) && childPct > 0 {
		scaled += p.steps[p.cur].weight * childPct
	}
	pct := scaled / total
	if pct > 100 {
		pct = 100
	}
	if pct > p.percent {
		p.percent = pct
	}
}

// emit walks to the root and fires the callback if the visible pair changed.
// The visible status is the deepest active node's, so a driver flipping its
// child scope to busy is what the consumer sees.
func (p *Progress) emit() {
	root := p
	for {
		root.mu.Lock()
		parent := root.parent
		root.mu.Unlock()
		if parent == nil {
			break
		}
		root = parent
	}

	status := root.deepStatus()

	root.mu.Lock()
	cb := root.cb
	pct := root.percent
	changed := !root.emittedOnce || status != root.lastStatus || pct != root.lastPercent
	if changed {
		root.emittedOnce = true
		root.lastStatus = status
		root.lastPercent = pct
	}
	root.mu.Unlock()

	if cb != nil && changed {
		cb(status, pct)
	}
}

func (p *Progress) deepStatus() Status {
	node := p
	status := StatusUnknown
	for node != nil {
		node.mu.Lock()
		if node.status != StatusUnknown {
			status = node.status
		}
		next := node.child
		node.mu.Unlock()
		node = next
	}
	return status
}
