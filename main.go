package main

import (
	"github.com/gluufederation/shibwatcher/cmd"
	"github.com/gluufederation/shibwatcher/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
