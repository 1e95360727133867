package main

import (
	"github.com/signalops/revbot/pkg/cmd"
)

func main() {
	cmd.Execute()
}
