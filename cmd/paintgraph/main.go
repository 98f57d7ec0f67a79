// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command paintgraph runs the colorbrush/paintgraph taint-analysis engine
// against a JSON-dumped class pool and reports source/sink intersections.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/colorbrush/paintgraph/internal/config"
)

var (
	cfgPath string
	cfg     config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (optional)")
	rootCmd.AddCommand(analyzeCmd, serveCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	}
}
