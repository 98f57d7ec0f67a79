// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/paint"
	"github.com/colorbrush/paintgraph/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "paintgraph",
	Short: "Static taint-paints JVM-family bytecode for source/sink intersections",
	Long: `paintgraph builds a per-method data-flow graph, colors it with a set of
fixpoint brushes, and paints interprocedurally across call sites to report
every place a declared SourceData value reaches a declared SinkTarget.`,
}

var (
	classesPath   string
	rulesPath     string
	entryClass    string
	entryName     string
	entryDesc     string
	entryStatic   bool
	outputFormat  string
	explainMethod string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a painting session from an entry method and report intersections",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&classesPath, "classes", "", "path to a JSON class pool dump (required)")
	analyzeCmd.Flags().StringVar(&rulesPath, "rules", "", "path to a YAML source/sink rule file (required)")
	analyzeCmd.Flags().StringVar(&entryClass, "entry-class", "", "internal name of the entry class (required)")
	analyzeCmd.Flags().StringVar(&entryName, "entry-method", "", "entry method name (required)")
	analyzeCmd.Flags().StringVar(&entryDesc, "entry-descriptor", "", "entry method descriptor, e.g. (Ljava/lang/String;)V (required)")
	analyzeCmd.Flags().BoolVar(&entryStatic, "entry-static", false, "treat the entry method as static (no implicit receiver)")
	analyzeCmd.Flags().StringVar(&outputFormat, "output", "table", "report format: table or json")
	analyzeCmd.Flags().StringVar(&explainMethod, "explain", "", "dump the L1 data-flow graph for method-class.name:descriptor as DOT and exit")
	for _, name := range []string{"classes", "rules", "entry-class", "entry-method", "entry-descriptor"} {
		_ = analyzeCmd.MarkFlagRequired(name)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	sessionID := uuid.New()
	logger := logging.New(logging.Config{Level: parseLevel(cfg.LogLevel), LogDir: cfg.LogDir, Service: "paintgraph"}).
		With("session_id", sessionID.String())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resolver, err := classfile.NewJSONResolver(classesPath)
	if err != nil {
		return fmt.Errorf("load class pool: %w", err)
	}
	rules, err := classfile.LoadRuleFile(rulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	if explainMethod != "" {
		return runExplain(ctx, resolver, explainMethod)
	}

	entry := classfile.MethodRef{Class: classfile.ClassName(entryClass), Name: entryName, Descriptor: entryDesc}
	logger.Info("starting analysis", "entry", entry.String())

	session := paint.NewSession(resolver, rules, cfg, logger)
	intersections, err := session.Analyze(ctx, entry, entryStatic)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	return renderReport(cmd, sessionID, entry, intersections, outputFormat)
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
