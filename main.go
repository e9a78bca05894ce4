package main

import "github.com/skairunner/lunabot/cmd"

func main() {
	cmd.Execute()
}
