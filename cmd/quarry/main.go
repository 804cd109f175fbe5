// Command quarry is the entry point for the quarry build orchestrator.
package main

import "github.com/quarrybuild/quarry/pkg/cli"

func main() {
	cli.Execute()
}
