// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/foundriesio/fwup/internal/history"
)

// InitializeDatabase creates the on-disk database and every table the
// engine needs, creating the parent directory first.
func InitializeDatabase(dbFilePath string) error {
	if dir := filepath.Dir(dbFilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	err := history.CreateHistoryTable(dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to create install_history table %w", err)
	}

	return nil
}
