package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/videlboga/scenarium/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate <scenario-dir>",
	Short: "Check scenario documents for consistency",
	Long:  `Parses every scenario in the directory and reports structural defects: dangling transitions, duplicate ids, unreachable terminal steps.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loader, err := file.NewLoader(args[0])
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}

		ids, err := loader.List()
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("All %d scenarios are valid.\n", len(ids))
		for _, id := range ids {
			fmt.Printf("  - %s\n", id)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
