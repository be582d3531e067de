// Package main is the single-binary entrypoint for staffcast.
package main

import "github.com/staffcast/staffcast/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
