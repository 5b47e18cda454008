package main

import "github.com/agentic-research/lens/cmd"

func main() {
	cmd.Execute()
}
