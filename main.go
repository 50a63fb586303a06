package main

import "github.com/qobs-build/qrun/cmd"

func main() {
	cmd.Execute()
}
