// Package main is the single-binary entrypoint for idlelock.
package main

import "github.com/idlelock/idlelock/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
