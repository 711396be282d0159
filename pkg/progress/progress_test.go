// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepWeightsRollUp(t *testing.T) {
	p := New()
	p.AddStep(StatusLoading, 50, "load")
	p.AddStep(StatusWriting, 50, "write")

	require.Equal(t, uint(0), p.Percentage())
	p.StepDone()
	require.Equal(t, uint(50), p.Percentage())
	p.StepDone()
	require.Equal(t, uint(100), p.Percentage())
}

func TestChildPercentageContributesStepShare(t *testing.T) {
	p := New()
	p.AddStep(StatusDetaching, 20, "detach")
	p.AddStep(StatusWriting, 80, "write")
	p.StepDone() // detach done, 20%

	c := p.Child()
	c.SetPercentage(50) // half of the 80-weight write step
	require.Equal(t, uint(60), p.Percentage())
	c.SetPercentage(100)
	p.StepDone()
	require.Equal(t, uint(100), p.Percentage())
}

func TestPercentageNeverRegresses(t *testing.T) {
	var seen []uint
	p := New()
	p.OnUpdate(func(_ Status, pct uint) {
		seen = append(seen, pct)
	})
	p.AddStep(StatusWriting, 1, "write")
	c := p.Child()
	c.SetPercentage(70)
	c.SetPercentage(30) // stale report, must not move backwards
	p.StepDone()

	last := uint(0)
	for _, pct := range seen {
		require.GreaterOrEqual(t, pct, last)
		last = pct
	}
	require.Equal(t, uint(100), last)
}

func TestStepDonePastEndIsIgnored(t *testing.T) {
	p := New()
	p.AddStep(StatusLoading, 1, "only")
	p.StepDone()
	p.StepDone() // extra completion must be a no-op
	require.Equal(t, uint(100), p.Percentage())
}

func TestCallbackDeduplicatesPairs(t *testing.T) {
	var calls int
	p := New()
	p.OnUpdate(func(Status, uint) { calls++ })
	p.AddStep(StatusWriting, 1, "write")
	c := p.Child()
	c.SetPercentage(40)
	c.SetPercentage(40)
	c.SetPercentage(40)
	require.Equal(t, 2, calls) // initial status emit + the 40% emit
}

func TestDeepStatusWinsOverRoot(t *testing.T) {
	var last Status
	p := New()
	p.OnUpdate(func(s Status, _ uint) { last = s })
	p.AddStep(StatusWriting, 1, "write")
	c := p.Child()
	c.SetStatus(StatusBusy)
	require.Equal(t, StatusBusy, last)
}

func TestFinishCompletesNode(t *testing.T) {
	p := New()
	p.AddStep(StatusLoading, 30, "a")
	p.AddStep(StatusWriting, 70, "b")
	p.Finish()
	require.Equal(t, uint(100), p.Percentage())
}
