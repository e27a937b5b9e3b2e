package main

import "zeta/cmd"

func main() {
	cmd.Execute()
}
