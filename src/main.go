package main

import (
	"os"

	"OnTimeDelay/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
