package main

import (
	"fmt"

	"github.com/cuemby/treasury/pkg/treasury"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open ROOT",
	Short: "Open an existing registry and report its asset count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := treasury.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}

		fmt.Printf("opened registry at %s (%d assets)\n", r.Root(), len(r.List(nil, "")))
		return nil
	},
}
