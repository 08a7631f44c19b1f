package main

import "harvester/cmd/cmd"

func main() {
	cmd.Execute()
}
