package main

import "github.com/echocheck/echocheck/cmd"

func main() {
	cmd.Execute()
}
