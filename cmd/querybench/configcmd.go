package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/querybench/querybench/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an annotated example configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		example, err := config.ExampleYAML()
		if err != nil {
			return fmt.Errorf("building example config: %w", err)
		}

		fmt.Print(example)

		return nil
	},
}

func init() {
	configCmd.AddCommand(configExampleCmd)
	rootCmd.AddCommand(configCmd)
}
