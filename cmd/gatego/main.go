package main

import (
	"os"

	"gatego-backend/cmd/gatego/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
