package main

import "github.com/markb/livedocs/cmd"

func main() {
	cmd.Execute()
}
