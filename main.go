package main

import "github.com/patchwatch/patchwatch/cmd"

func main() {
	cmd.Execute()
}
