// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package history persists one record per install attempt. Records are
// created pending before device I/O starts and closed exactly once;
// a pending record surviving a process crash is closed as interrupted
// at the next engine start.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

type (
	// Outcome is the terminal (or not yet terminal) state of one attempt.
	Outcome int

	// Record is one install attempt as persisted.
	Record struct {
		ID          string    `json:"id"`
		DeviceID    string    `json:"device_id"`
		DeviceName  string    `json:"device_name,omitempty"`
		GUIDs       []string  `json:"guids,omitempty"`
		Plugin      string    `json:"plugin,omitempty"`
		OldVersion  string    `json:"old_version"`
		NewVersion  string    `json:"new_version"`
		ReleaseID   string    `json:"release_id,omitempty"`
		Outcome     Outcome   `json:"outcome"`
		Error       string    `json:"error,omitempty"`
		Reported    bool      `json:"reported"`
		CreatedAt   time.Time `json:"created_at"`
		CompletedAt time.Time `json:"completed_at,omitempty"`
	}
)

const (
	OutcomePending Outcome = 1
	OutcomeSuccess Outcome = 2
	OutcomeFailed  Outcome = 3
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InterruptedError is recorded on pending rows found at startup.
const InterruptedError = "interrupted by engine restart"

func openDb(dbFilePath string) (*sql.DB, func(), error) {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closer := func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}
	return db, closer, nil
}

func CreateHistoryTable(dbFilePath string) error {
	db, closer, err := openDb(dbFilePath)
	if err != nil {
		return err
	}
	defer closer()

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS install_history(
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	device_name TEXT NOT NULL DEFAULT "",
	guids TEXT NOT NULL DEFAULT "[]",
	plugin TEXT NOT NULL DEFAULT "",
	old_version TEXT NOT NULL DEFAULT "",
	new_version TEXT NOT NULL DEFAULT "",
	release_id TEXT NOT NULL DEFAULT "",
	outcome INTEGER NOT NULL CHECK (outcome IN (1,2,3)) DEFAULT 1,
	error TEXT NOT NULL DEFAULT "",
	reported INTEGER NOT NULL CHECK (reported IN (0,1)) DEFAULT 0,
	created_at INTEGER NOT NULL,
	completed_at INTEGER NOT NULL DEFAULT 0
);`)
	if err != nil {
		return fmt.Errorf("failed to create install_history table: %w", err)
	}

	return nil
}

// Begin inserts a pending record for an attempt about to start writing
// and returns its ID. The insert is committed before this returns, so a
// crash mid-install always leaves a discoverable pending row.
func Begin(dbFilePath string, r *Record) (string, error) {
	db, closer, err := openDb(dbFilePath)
	if err != nil {
		return "", err
	}
	defer closer()

	guids, err := json.Marshal(r.GUIDs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record GUIDs: %w", err)
	}
	id := ulid.Make().String()
	_, err = db.Exec(`INSERT INTO install_history
		(id, device_id, device_name, guids, plugin, old_version, new_version, release_id, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		id, r.DeviceID, r.DeviceName, string(guids), r.Plugin,
		r.OldVersion, r.NewVersion, r.ReleaseID, OutcomePending, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to insert history record: %w", err)
	}
	return id, nil
}

// Complete closes a pending record with its terminal outcome. When
// finalVersion is non-empty it replaces the recorded new_version, so
// the record shows what the device actually ended up running rather
// than what the attempt targeted. Closing a record twice is an error;
// terminal records are immutable apart from the reported flag.
func Complete(dbFilePath, id string, outcome Outcome, errMsg, finalVersion string) error {
	if outcome != OutcomeSuccess && outcome != OutcomeFailed {
		return errdefs.Wrapf(errdefs.ErrInvalidArgs, "outcome %s is not terminal", outcome)
	}
	db, closer, err := openDb(dbFilePath)
	if err != nil {
		return err
	}
	defer closer()

	var res sql.Result
	if finalVersion == "" {
		res, err = db.Exec(`UPDATE install_history
			SET outcome = ?, error = ?, completed_at = ?
			WHERE id = ? AND outcome = ?;`,
			outcome, errMsg, time.Now().Unix(), id, OutcomePending)
	} else {
		res, err = db.Exec(`UPDATE install_history
			SET outcome = ?, error = ?, completed_at = ?, new_version = ?
			WHERE id = ? AND outcome = ?;`,
			outcome, errMsg, time.Now().Unix(), finalVersion, id, OutcomePending)
	}
	if err != nil {
		return fmt.Errorf("failed to complete history record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check history update: %w", err)
	}
	if n == 0 {
		return errdefs.Wrapf(errdefs.ErrNotFound, "no pending history record %s", id)
	}
	return nil
}

// SetReported flips the reported flag, the one mutation allowed on a
// terminal record.
func SetReported(dbFilePath, id string, reported bool) error {
	db, closer, err := openDb(dbFilePath)
	if err != nil {
		return err
	}
	defer closer()

	val := 0
	if reported {
		val = 1
	}
	res, err := db.Exec("UPDATE install_history SET reported = ? WHERE id = ?;", val, id)
	if err != nil {
		return fmt.Errorf("failed to update reported flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errdefs.Wrapf(errdefs.ErrNotFound, "history record %s", id)
	}
	return nil
}

const selectColumns = `SELECT id, device_id, device_name, guids, plugin,
	old_version, new_version, release_id, outcome, error, reported, created_at, completed_at
	FROM install_history`

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			r           Record
			guids       string
			reported    int
			createdAt   int64
			completedAt int64
		)
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.DeviceName, &guids, &r.Plugin,
			&r.OldVersion, &r.NewVersion, &r.ReleaseID, &r.Outcome, &r.Error,
			&reported, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if err := json.Unmarshal([]byte(guids), &r.GUIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record GUIDs: %w", err)
		}
		r.Reported = reported == 1
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		if completedAt > 0 {
			r.CompletedAt = time.Unix(completedAt, 0).UTC()
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return records, nil
}

func query(dbFilePath, where string, args ...interface{}) ([]Record, error) {
	db, closer, err := openDb(dbFilePath)
	if err != nil {
		return nil, err
	}
	defer closer()

	rows, err := db.Query(selectColumns+where+" ORDER BY id;", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select history records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close rows")
		}
	}()
	return scanRecords(rows)
}

// GetAll returns every record in attempt order, oldest first.
func GetAll(dbFilePath string) ([]Record, error) {
	return query(dbFilePath, "")
}

// GetForDevice returns the device's records in attempt order.
func GetForDevice(dbFilePath, deviceID string) ([]Record, error) {
	return query(dbFilePath, " WHERE device_id = ?", deviceID)
}

// GetLastForDevice returns the most recent record for the device.
func GetLastForDevice(dbFilePath, deviceID string) (*Record, error) {
	records, err := GetForDevice(dbFilePath, deviceID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errdefs.Wrapf(errdefs.ErrNotFound, "no history for device %s", deviceID)
	}
	return &records[len(records)-1], nil
}

// Pending returns records that never reached a terminal outcome.
func Pending(dbFilePath string) ([]Record, error) {
	return query(dbFilePath, " WHERE outcome = ?", OutcomePending)
}

// CloseInterrupted marks every pending record failed with
// InterruptedError and returns how many were closed. Called once at
// engine start before any new install may begin.
func CloseInterrupted(dbFilePath string) (int, error) {
	pending, err := Pending(dbFilePath)
	if err != nil {
		return 0, err
	}
	for _, r := range pending {
		if err := Complete(dbFilePath, r.ID, OutcomeFailed, InterruptedError, ""); err != nil {
			return 0, err
		}
		log.Warn().Str("record", r.ID).Str("device", r.DeviceID).
			Msg("Closed install interrupted by restart")
	}
	return len(pending), nil
}

// ClearAll erases the whole history.
func ClearAll(dbFilePath string) error {
	db, closer, err := openDb(dbFilePath)
	if err != nil {
		return err
	}
	defer closer()

	if _, err = db.Exec("DELETE FROM install_history;"); err != nil {
		return fmt.Errorf("failed to clear install_history: %w", err)
	}
	return nil
}
