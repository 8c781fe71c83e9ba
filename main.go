package main

import "github.com/timvw/pane-gateway/cmd"

func main() {
	cmd.Execute()
}
