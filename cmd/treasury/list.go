package main

import (
	"fmt"
	"strings"

	"github.com/cuemby/treasury/pkg/treasury"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list ROOT",
	Short: "List cataloged assets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tagsFlag, _ := cmd.Flags().GetString("tags")
		nativeFormat, _ := cmd.Flags().GetString("native-format")
		var tags []string
		if tagsFlag != "" {
			tags = strings.Split(tagsFlag, ",")
		}

		r, err := treasury.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}

		assets := r.List(tags, nativeFormat)
		if len(assets) == 0 {
			fmt.Println("no assets found")
			return nil
		}

		fmt.Printf("%-36s %-24s %-10s %-10s %s\n", "UUID", "SOURCE", "SRC FMT", "NATIVE FMT", "TAGS")
		for i := range assets {
			a := &assets[i]
			fmt.Printf("%-36s %-24s %-10s %-10s %s\n",
				a.UUID(), a.Source(), a.SourceFormat(), a.NativeFormat(), strings.Join(a.Tags(), ","))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("tags", "", "Comma-separated tags, all of which must be present")
	listCmd.Flags().String("native-format", "", "Filter to this native format")
}
