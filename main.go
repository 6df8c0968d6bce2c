// Package main is the entry point for the timemachine CLI.
// It drives the utm-core backup engine directly or through a bridge socket.
package main

import (
	"timemachine/cli/cmd"
)

func main() {
	cmd.Execute()
}
