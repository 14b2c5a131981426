package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"checkin/internal/cli"
)

func main() {
	_ = godotenv.Load()

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
