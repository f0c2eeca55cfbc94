package main

import (
	"fmt"
	"os"

	"crosswallet/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; environment variables and the config file
	// cover the same settings.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
