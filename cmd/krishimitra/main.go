/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package main

import (
	"os"

	"github.com/krishimitra-ai/krishimitra/cmd/krishimitra/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
