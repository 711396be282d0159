// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"os"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

// DieNotNil logs the error and exits with code 1.
func DieNotNil(err error, message ...string) {
	DieNotNilWithCode(err, 1, message...)
}

// DieNotNilWithCode logs the error and exits with the given code.
func DieNotNilWithCode(err error, exitCode int, message ...string) {
	if err != nil {
		parts := []interface{}{"ERROR:"}
		for _, p := range message {
			parts = append(parts, p)
		}
		parts = append(parts, err)
		fmt.Println(parts...)
		os.Exit(exitCode)
	}
}

// DieInstallErr exits 2 when there was nothing to do, so scripts can
// tell "already current" apart from a real failure, and 1 otherwise.
func DieInstallErr(err error, message ...string) {
	if errdefs.IsNothingToDo(err) {
		DieNotNilWithCode(err, 2)
	}
	DieNotNil(err, message...)
}
