package main

import (
	"os"
)

var (
	version   string
	buildTime string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
