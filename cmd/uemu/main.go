// Command uemu runs assembly programs on the emulator.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uemu",
	Short: "uemu is a virtual machine emulator",
	Long: "uemu runs assembly programs on an emulated machine with " +
		"configurable processors and memory, and reports execution " +
		"traces and performance metrics.",
}

func main() {
	// A .env file can pre-set the flags' UEMU_* environment defaults.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
