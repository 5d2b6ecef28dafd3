package main

import (
	"os"

	"github.com/bnema/pogo-accounts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
