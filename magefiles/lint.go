// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import "github.com/magefile/mage/sh"

// Lint runs golangci-lint over every package in the module.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}
