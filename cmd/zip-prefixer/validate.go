package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/klausbrunner/zip-prefixer/lib/magic"
	"github.com/klausbrunner/zip-prefixer/zipprefix"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <zipfile>",
	Short: "Check that a ZIP's internal offsets are consistent",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	RootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := sniff(path); err != nil {
		return err
	}
	if err := zipprefix.ValidateOffsets(path); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

// sniff gives a friendlier error than the walker's own 512 KiB backward
// scan for the common case of a file that obviously isn't a ZIP at all.
func sniff(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	switch magic.Detect(f) {
	case magic.FileTypeZip, magic.FileTypeJAR:
		return nil
	default:
		return errors.New(path + " doesn't look like a ZIP or JAR")
	}
}
