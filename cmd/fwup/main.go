// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause
package main

import (
	"os"
)

func main() {
	// cobra prints the error itself, only the exit code is ours
	if Execute() != nil {
		os.Exit(1)
	}
}
