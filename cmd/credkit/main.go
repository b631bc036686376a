// Command credkit administers key entry stores and inspects identity tokens.
package main

import "github.com/turtacn/credkit/cmd/cli"

func main() {
	cli.Execute()
}
