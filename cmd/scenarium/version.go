package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/videlboga/scenarium"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of scenarium",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scenarium version %s\n", scenarium.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
