package main

import (
	"fmt"
	"strconv"

	"github.com/klausbrunner/zip-prefixer/zipprefix"
	"github.com/spf13/cobra"
)

var adjustCmd = &cobra.Command{
	Use:   "adjust <zipfile> <displacement>",
	Short: "Shift every offset field in a ZIP by a fixed displacement",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdjust,
}

func init() {
	RootCmd.AddCommand(adjustCmd)
}

func runAdjust(cmd *cobra.Command, args []string) error {
	path := args[0]
	displacement, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid displacement %q: %w", args[1], err)
	}
	if err := sniff(path); err != nil {
		return err
	}
	if err := zipprefix.AdjustOffsets(path, displacement); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}
