// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the reshape project using Mage.
//
// Usage:
//
//	mage build            Compile reshape binary to bin/
//	mage test:all         Run all tests (unit + integration)
//	mage test:unit        Run only unit tests (exclude integration)
//	mage test:integration Run only integration tests (builds first)
//	mage test:cover       Run all tests with coverage
//	mage lint             Run golangci-lint
//	mage clean            Remove build artifacts
//	mage install          Install reshape to GOPATH/bin
//go:build mage

package main

const (
	binGo      = "go"
	binaryName = "reshape"
	binaryDir  = "bin"
	cmdDir     = "./cmd/reshape"
)
