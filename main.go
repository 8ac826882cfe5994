package main

import "github.com/liamg/portprobe/cmd"

func main() {
	cmd.Execute()
}
