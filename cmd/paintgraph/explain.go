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
	"os"
	"strings"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/dataflow"
)

// runExplain builds just the L1 MethodDataGraph for one method (no L2
// coloring, no L3 interprocedural painting) and dumps it as DOT, for
// debugging the graph builder in isolation (spec.md §4.2's worklist
// stitching is the usual thing worth visualizing when a method's merge
// points look wrong).
func runExplain(ctx context.Context, resolver classfile.ClassResolver, target string) error {
	ref, err := parseExplainTarget(target)
	if err != nil {
		return err
	}

	handle, err := resolver.GetMethod(ctx, ref.Class, ref.Name, ref.Descriptor)
	if err != nil {
		handle, err = resolver.GetConstructor(ctx, ref.Class, ref.Descriptor)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ref, err)
		}
	}
	body, err := handle.Code(ctx)
	if err != nil {
		return fmt.Errorf("load code for %s: %w", ref, err)
	}

	graph, err := dataflow.BuildMethodGraph(ctx, classfile.ScopeToClass(resolver, ref.Class), body, handle.IsStatic())
	if err != nil {
		return fmt.Errorf("build graph for %s: %w", ref, err)
	}

	return writeDOT(os.Stdout, graph)
}

// parseExplainTarget parses "class.name:descriptor" into a MethodRef.
func parseExplainTarget(s string) (classfile.MethodRef, error) {
	classAndRest := strings.SplitN(s, ".", 2)
	if len(classAndRest) != 2 {
		return classfile.MethodRef{}, fmt.Errorf("--explain target must be class.name:descriptor, got %q", s)
	}
	nameAndDesc := strings.SplitN(classAndRest[1], ":", 2)
	if len(nameAndDesc) != 2 {
		return classfile.MethodRef{}, fmt.Errorf("--explain target must be class.name:descriptor, got %q", s)
	}
	return classfile.MethodRef{
		Class:      classfile.ClassName(classAndRest[0]),
		Name:       nameAndDesc[0],
		Descriptor: nameAndDesc[1],
	}, nil
}

func writeDOT(w *os.File, graph *dataflow.MethodDataGraph) error {
	fmt.Fprintf(w, "digraph %q {\n", graph.Method.String())
	fmt.Fprintln(w, `  rankdir="LR";`)

	ids := map[*dataflow.DataNode]string{}
	id := 0
	nodeID := func(n *dataflow.DataNode) string {
		if n == nil {
			return ""
		}
		if existing, ok := ids[n]; ok {
			return existing
		}
		name := fmt.Sprintf("n%d", id)
		ids[n] = name
		id++
		return name
	}

	for _, block := range graph.Blocks {
		for _, n := range block.Nodes {
			fmt.Fprintf(w, "  %s [label=%q];\n", nodeID(n), n.String())
			for _, in := range n.Inputs {
				if in == nil {
					continue
				}
				fmt.Fprintf(w, "  %s -> %s;\n", nodeID(in), nodeID(n))
			}
		}
	}
	fmt.Fprintln(w, "}")
	return nil
}
