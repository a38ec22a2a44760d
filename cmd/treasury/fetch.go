package main

import (
	"fmt"
	"os"

	"github.com/cuemby/treasury/pkg/treasury"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch ROOT UUID",
	Short: "Fetch an asset's native bytes, reimporting if stale",
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

		out, _ := cmd.Flags().GetString("output")
		ad, err := r.Fetch(id)
		if err != nil {
			return fmt.Errorf("failed to fetch asset: %w", err)
		}

		if out == "" {
			_, err = os.Stdout.Write(ad.Bytes)
			return err
		}
		return os.WriteFile(out, ad.Bytes, 0o644)
	},
}

func init() {
	fetchCmd.Flags().String("output", "", "Write native bytes to this path instead of stdout")
}
