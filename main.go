package main

import "github.com/user/stigforge/cmd"

func main() {
	cmd.Execute()
}
