package main

import "munin/cmd"

func main() {
	cmd.Execute()
}
