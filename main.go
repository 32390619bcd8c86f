// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Puppetflash - Peripheral Coprocessor Firmware Updater
//
// Streams Intel HEX images to a peripheral coprocessor through the
// update bridge register interface.

package main

import (
	"os"

	"github.com/Thermoquad/puppetflash/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
