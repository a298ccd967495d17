package main

import (
	"os"

	installer "github.com/heili/arch-installer"
)

func main() {
	os.Exit(installer.Run())
}
