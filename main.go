package main

import (
	"github.com/resonatehq/syncevents/cmd"
)

func main() {
	cmd.Execute()
}
