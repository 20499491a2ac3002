package main

import "msggw/cmd"

func main() {
	cmd.Execute()
}
