package main

import (
	"fmt"

	"github.com/cuemby/treasury/pkg/treasury"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove ROOT UUID",
	Short: "Remove an asset and its native file from the registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid uuid: %w", err)
		}

		r, err := treasury.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}

		if err := r.Remove(id); err != nil {
			return fmt.Errorf("failed to remove asset: %w", err)
		}
		if err := r.Save(); err != nil {
			return fmt.Errorf("failed to save manifest: %w", err)
		}

		fmt.Printf("removed asset %s\n", id)
		return nil
	},
}
