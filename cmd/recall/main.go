// Command recall is the command-line interface to the recall engine.
package main

import "github.com/mesh-intelligence/recall/internal/cli"

func main() {
	cli.Execute()
}
