// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad
//
// Gyrostat - Balance Controller Control Panel
//
// A CLI tool for monitoring, tuning and driving a self-balancing robot's
// motor controller over its serial line protocol.

package main

import (
	"os"

	"github.com/Thermoquad/gyrostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
