// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/revgeo/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
