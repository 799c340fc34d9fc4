package main

import (
	"os"

	"mcmappings/internal/cliapp"
)

func main() {
	os.Exit(cliapp.Run(os.Args[1:]))
}
