// Package main provides the bulkdump CLI.
package main

import "github.com/mesh-intelligence/bulkdump/internal/cli"

func main() {
	cli.Execute()
}
