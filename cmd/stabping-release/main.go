package main

import "github.com/oshokin/stabping-release/cmd/stabping-release/cmd"

func main() {
	cmd.Execute()
}
