// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/paint"
)

// jsonReport is the CLI's JSON output shape: one session's entry point and
// every intersection it found.
type jsonReport struct {
	SessionID     string         `json:"session_id"`
	Entry         string         `json:"entry"`
	GeneratedAt   string         `json:"generated_at"`
	Intersections []jsonFinding  `json:"intersections"`
}

type jsonFinding struct {
	Method string `json:"method"`
	Source string `json:"source"`
	Sink   string `json:"sink"`
}

func renderReport(cmd *cobra.Command, sessionID uuid.UUID, entry classfile.MethodRef, intersections []paint.Intersection, format string) error {
	switch format {
	case "json":
		findings := make([]jsonFinding, len(intersections))
		for i, it := range intersections {
			findings[i] = jsonFinding{Method: it.Method.String(), Source: it.Source, Sink: it.Sink}
		}
		report := jsonReport{
			SessionID:     sessionID.String(),
			Entry:         entry.String(),
			GeneratedAt:   nowRFC3339(),
			Intersections: findings,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "table":
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s  entry %s\n", sessionID, entry)
		if len(intersections) == 0 {
			fmt.Fprintln(out, "no intersections found")
			return nil
		}
		fmt.Fprintf(out, "%-40s  %-10s  %s\n", "METHOD", "", "TRACE")
		for _, it := range intersections {
			fmt.Fprintf(out, "%-40s  source->sink  %s  -x-  %s\n", it.Method, it.Source, it.Sink)
		}
		return nil
	default:
		return fmt.Errorf("unknown --output format %q (want table or json)", format)
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
