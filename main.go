package main

import "github.com/agentic-research/fedgraph/cmd"

func main() {
	cmd.Execute()
}
