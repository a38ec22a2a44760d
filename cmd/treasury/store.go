package main

import (
	"fmt"
	"strings"

	"github.com/cuemby/treasury/pkg/treasury"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store ROOT SOURCE SOURCE_FORMAT NATIVE_FORMAT",
	Short: "Import SOURCE into the registry at ROOT",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		tagsFlag, _ := cmd.Flags().GetString("tags")
		var tags []string
		if tagsFlag != "" {
			tags = strings.Split(tagsFlag, ",")
		}

		r, err := treasury.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}

		id, err := r.Store(args[1], args[2], args[3], tags)
		if err != nil {
			return fmt.Errorf("failed to store asset: %w", err)
		}

		fmt.Printf("stored asset %s\n", id)
		return nil
	},
}

func init() {
	storeCmd.Flags().String("tags", "", "Comma-separated tags")
}
