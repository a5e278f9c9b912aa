package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of cvat2labelme",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cvat2labelme %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
