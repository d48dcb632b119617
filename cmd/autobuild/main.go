package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := Execute(); err != nil {
		fatal(err)
		os.Exit(1)
	}
}
