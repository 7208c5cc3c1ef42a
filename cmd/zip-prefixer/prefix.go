package main

import (
	"fmt"

	"github.com/klausbrunner/zip-prefixer/internal/config"
	"github.com/klausbrunner/zip-prefixer/lib/atomicfile"
	"github.com/klausbrunner/zip-prefixer/zipprefix"
	"github.com/spf13/cobra"
)

var (
	argRecipe     string
	argConfigFile string
	argOutput     string
)

var prefixCmd = &cobra.Command{
	Use:   "prefix <zipfile> [prefix-file...]",
	Short: "Prepend one or more files to a ZIP and repair its offsets",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPrefix,
}

func init() {
	RootCmd.AddCommand(prefixCmd)
	prefixCmd.Flags().StringVar(&argRecipe, "recipe", "", "Name of a recipe in --config to use instead of explicit prefix files")
	prefixCmd.Flags().StringVarP(&argConfigFile, "config", "c", "", "Recipe file (required with --recipe)")
	prefixCmd.Flags().StringVarP(&argOutput, "output", "o", "", "Write the result here instead of replacing the input in place; use - for stdout")
}

func runPrefix(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := sniff(path); err != nil {
		return err
	}

	var prefixes []zipprefix.Prefix
	var recipeID string
	if argRecipe != "" {
		var err error
		prefixes, recipeID, err = recipePrefixes()
		if err != nil {
			return err
		}
	} else {
		prefixFiles := args[1:]
		if len(prefixFiles) == 0 {
			return fmt.Errorf("specify at least one prefix file, or --recipe")
		}
		prefixes = make([]zipprefix.Prefix, len(prefixFiles))
		for i, p := range prefixFiles {
			prefixes[i] = zipprefix.FilePrefix(p)
		}
	}

	if argOutput != "" {
		out, err := atomicfile.WriteAny(argOutput)
		if err != nil {
			return err
		}
		n, err := zipprefix.ApplyPrefixesToWriter(path, out, prefixes...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "OK: prepended %d bytes, written to %s\n", n, argOutput)
		return nil
	}

	var (
		n   int64
		err error
	)
	if recipeID != "" {
		n, err = zipprefix.ApplyRecipeToZip(path, recipeID, prefixes...)
	} else {
		n, err = zipprefix.ApplyPrefixesToZip(path, prefixes...)
	}
	if err != nil {
		return err
	}
	fmt.Printf("OK: prepended %d bytes\n", n)
	return nil
}

func recipePrefixes() ([]zipprefix.Prefix, string, error) {
	if argConfigFile == "" {
		return nil, "", fmt.Errorf("--recipe requires --config")
	}
	cfg, err := config.ReadFile(argConfigFile)
	if err != nil {
		return nil, "", err
	}
	recipe, err := cfg.GetRecipe(argRecipe)
	if err != nil {
		return nil, "", err
	}
	recipePaths := recipe.Paths()
	prefixes := make([]zipprefix.Prefix, len(recipePaths))
	for i, p := range recipePaths {
		prefixes[i] = zipprefix.FilePrefix(p)
	}
	return prefixes, recipe.ID.String(), nil
}
