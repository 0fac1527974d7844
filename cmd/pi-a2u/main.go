package main

import "github.com/vitwit/pinetwork/internal/cli"

func main() {
	cli.Execute()
}
