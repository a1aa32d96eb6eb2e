package main

import "github.com/bctelemetry/bctb/cmd"

func main() {
	cmd.Execute()
}
