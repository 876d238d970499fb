package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mr1hm/pest-forecast/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
