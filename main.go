package main

import "github.com/kiesman99/gridstitch/cmd"

func main() {
	cmd.Execute()
}
