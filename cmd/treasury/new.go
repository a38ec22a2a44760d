package main

import (
	"fmt"

	"github.com/cuemby/treasury/pkg/treasury"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new ROOT",
	Short: "Create a new, empty registry at ROOT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		r, err := treasury.New(args[0], overwrite)
		if err != nil {
			return fmt.Errorf("failed to create registry: %w", err)
		}

		fmt.Printf("created registry at %s\n", r.Root())
		return nil
	},
}

func init() {
	newCmd.Flags().Bool("overwrite", false, "Replace an existing manifest")
}
