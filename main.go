package main

import "ragbridge/cmd"

func main() {
	cmd.Execute()
}
