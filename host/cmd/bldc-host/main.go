package main

import (
	"gobldc/host/cmd/bldc-host/cmd"
)

func main() {
	cmd.Execute()
}
