// Command zip-prefixer prepends arbitrary bytes to a ZIP archive without
// rebuilding it, and validates or repairs the archive's offset fields
// when displaced bytes would otherwise leave them stale.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var argVerbose bool

var RootCmd = &cobra.Command{
	Use:           "zip-prefixer",
	Short:         "Prepend bytes to a ZIP archive in place",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&argVerbose, "verbose", "v", false, "Enable debug logging")
	cobra.OnInitialize(func() {
		level := zerolog.InfoLevel
		if argVerbose {
			level = zerolog.DebugLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
	})
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zip-prefixer:", err)
		os.Exit(1)
	}
}
