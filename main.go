package main

import "github.com/fakeyudi/buildtrace/cmd"

func main() {
	cmd.Execute()
}
