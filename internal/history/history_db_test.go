// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

func newTestDb(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fwup.db")
	require.Nil(t, CreateHistoryTable(dbPath))
	return dbPath
}

func TestHistory_BeginComplete(t *testing.T) {
	dbPath := newTestDb(t)

	id, err := Begin(dbPath, &Record{
		DeviceID:   "dev1",
		DeviceName: "Example Device",
		GUIDs:      []string{"2b0e1a46-55e7-52ea-a4a8-eb4b4f217acd"},
		Plugin:     "emulated",
		OldVersion: "1.0.0",
		NewVersion: "1.2.0",
		ReleaseID:  "r1",
	})
	require.Nil(t, err)
	require.NotEmpty(t, id)

	pending, err := Pending(dbPath)
	require.Nil(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, OutcomePending, pending[0].Outcome)

	require.Nil(t, Complete(dbPath, id, OutcomeSuccess, "", ""))

	records, err := GetAll(dbPath)
	require.Nil(t, err)
	require.Len(t, records, 1)
	r := records[0]
	require.Equal(t, OutcomeSuccess, r.Outcome)
	require.Equal(t, "1.0.0", r.OldVersion)
	require.Equal(t, "1.2.0", r.NewVersion)
	require.Equal(t, []string{"2b0e1a46-55e7-52ea-a4a8-eb4b4f217acd"}, r.GUIDs)
	require.False(t, r.CompletedAt.IsZero())
	require.False(t, r.Reported)

	pending, err = Pending(dbPath)
	require.Nil(t, err)
	require.Empty(t, pending)
}

func TestHistory_CompletedRecordIsImmutable(t *testing.T) {
	dbPath := newTestDb(t)
	id, err := Begin(dbPath, &Record{DeviceID: "dev1", OldVersion: "1.0.0", NewVersion: "1.2.0"})
	require.Nil(t, err)
	// The device never left 1.0.0, so the failure records that version.
	require.Nil(t, Complete(dbPath, id, OutcomeFailed, "device timed out", "1.0.0"))

	// A second completion must not overwrite the first.
	err = Complete(dbPath, id, OutcomeSuccess, "", "")
	require.True(t, errdefs.IsNotFound(err))

	records, err := GetAll(dbPath)
	require.Nil(t, err)
	require.Equal(t, OutcomeFailed, records[0].Outcome)
	require.Equal(t, "device timed out", records[0].Error)
	require.Equal(t, "1.0.0", records[0].NewVersion)

	// The reported flag is the one allowed mutation.
	require.Nil(t, SetReported(dbPath, id, true))
	records, err = GetAll(dbPath)
	require.Nil(t, err)
	require.True(t, records[0].Reported)
}

func TestHistory_CompleteRequiresTerminalOutcome(t *testing.T) {
	dbPath := newTestDb(t)
	id, err := Begin(dbPath, &Record{DeviceID: "dev1"})
	require.Nil(t, err)

	err = Complete(dbPath, id, OutcomePending, "", "")
	require.True(t, errdefs.IsInvalidArgs(err))
}

func TestHistory_CloseInterrupted(t *testing.T) {
	dbPath := newTestDb(t)
	_, err := Begin(dbPath, &Record{DeviceID: "dev1", OldVersion: "1.0.0", NewVersion: "1.2.0"})
	require.Nil(t, err)
	done, err := Begin(dbPath, &Record{DeviceID: "dev2", OldVersion: "2.0.0", NewVersion: "2.1.0"})
	require.Nil(t, err)
	require.Nil(t, Complete(dbPath, done, OutcomeSuccess, "", ""))

	// Simulated restart: the pending dev1 attempt must be closed as failed.
	n, err := CloseInterrupted(dbPath)
	require.Nil(t, err)
	require.Equal(t, 1, n)

	records, err := GetForDevice(dbPath, "dev1")
	require.Nil(t, err)
	require.Len(t, records, 1)
	require.Equal(t, OutcomeFailed, records[0].Outcome)
	require.Equal(t, InterruptedError, records[0].Error)

	// Nothing left pending afterwards.
	n, err = CloseInterrupted(dbPath)
	require.Nil(t, err)
	require.Equal(t, 0, n)
}

func TestHistory_OrderAndClear(t *testing.T) {
	dbPath := newTestDb(t)
	for i, v := range []string{"1.0.1", "1.0.2", "1.0.3"} {
		id, err := Begin(dbPath, &Record{DeviceID: "dev1", OldVersion: "1.0.0", NewVersion: v})
		require.Nil(t, err)
		outcome := OutcomeSuccess
		if i == 1 {
			outcome = OutcomeFailed
		}
		require.Nil(t, Complete(dbPath, id, outcome, "", ""))
	}

	records, err := GetAll(dbPath)
	require.Nil(t, err)
	require.Len(t, records, 3)
	// Attempt order is preserved, no implicit filtering of failures.
	require.Equal(t, "1.0.1", records[0].NewVersion)
	require.Equal(t, "1.0.2", records[1].NewVersion)
	require.Equal(t, OutcomeFailed, records[1].Outcome)
	require.Equal(t, "1.0.3", records[2].NewVersion)

	last, err := GetLastForDevice(dbPath, "dev1")
	require.Nil(t, err)
	require.Equal(t, "1.0.3", last.NewVersion)

	_, err = GetLastForDevice(dbPath, "ghost")
	require.True(t, errdefs.IsNotFound(err))

	require.Nil(t, ClearAll(dbPath))
	records, err = GetAll(dbPath)
	require.Nil(t, err)
	require.Empty(t, records)
}
