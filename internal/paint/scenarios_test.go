// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package paint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/config"
	"github.com/colorbrush/paintgraph/pkg/logging"
)

// newScopedJSONResolver writes classes to a temp JSON file and loads it
// through classfile.NewJSONResolver, the same path cmd/paintgraph takes
// at runtime, so these scenarios exercise the real per-class
// constant-pool resolution (classfile.ScopeToClass) rather than the
// bare fakeResolver stub in session_test.go.
func newScopedJSONResolver(t *testing.T, classesJSON string) classfile.ClassResolver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classes.json")
	require.NoError(t, os.WriteFile(path, []byte(classesJSON), 0o644))
	resolver, err := classfile.NewJSONResolver(path)
	require.NoError(t, err)
	return resolver
}

// TestSessionPrepareStatementScenarioFiresOneIntersection is spec.md §8
// scenario 3: a caller passes a declared-source argument into a call
// whose callee declares that same formal parameter a sink. The
// intersection is realized by the callee task seeding its own parameter
// node twice — once from the caller's argument coloring
// (Session.execute's SeedParam), once from the callee's own
// MethodParameterImplicitColorer rule — landing on the same node and
// firing color.mergeMostDangerousEntry.
func TestSessionPrepareStatementScenarioFiresOneIntersection(t *testing.T) {
	resolver := newScopedJSONResolver(t, `{
		"com/example/Executor": {
			"methods": {
				"execute:(Ljava/lang/String;)V": {
					"static": true,
					"instructions": [{"offset": 0, "opcode": 177}],
					"blocks": [{"id": 0, "start": 0, "end": 1, "entry": true}],
					"frames": [{"offset": 0, "locals": ["reference"], "stack": []}]
				}
			}
		},
		"com/example/App": {
			"methods": {
				"prepareStatement:(Ljava/lang/String;Ljava/lang/String;)V": {
					"static": true,
					"instructions": [
						{"offset": 0, "opcode": 43},
						{"offset": 1, "opcode": 184, "operand": [0, 1]},
						{"offset": 4, "opcode": 177}
					],
					"blocks": [{"id": 0, "start": 0, "end": 5, "entry": true}],
					"frames": [
						{"offset": 0, "locals": ["reference", "reference"], "stack": []},
						{"offset": 1, "locals": ["reference", "reference"], "stack": ["reference"]},
						{"offset": 4, "locals": ["reference", "reference"], "stack": []}
					]
				}
			},
			"methodrefs": {
				"1": {"class": "com/example/Executor", "name": "execute", "descriptor": "(Ljava/lang/String;)V"}
			}
		}
	}`)

	rules := classfile.NewStaticRuleProvider()
	src := classfile.ColorSourceData
	sink := classfile.ColorSinkTarget
	rules.AddMethodRule("com/example/App", "prepareStatement", "(Ljava/lang/String;Ljava/lang/String;)V", classfile.MethodColorRule{
		ParamColors: []*classfile.Color{nil, &src},
	})
	rules.AddMethodRule("com/example/Executor", "execute", "(Ljava/lang/String;)V", classfile.MethodColorRule{
		ParamColors: []*classfile.Color{&sink},
	})

	cfg := config.Default()
	session := NewSession(resolver, rules, cfg, logging.Default())

	entry := classfile.MethodRef{Class: "com/example/App", Name: "prepareStatement", Descriptor: "(Ljava/lang/String;Ljava/lang/String;)V"}
	intersections, err := session.Analyze(context.Background(), entry, true)
	require.NoError(t, err)
	require.Len(t, intersections, 1)
	assert.Equal(t, "com/example/Executor.execute(Ljava/lang/String;)V", intersections[0].Method.String())
}

// TestSessionMutuallyRecursiveMethodsTerminate is spec.md §8 scenario 6:
// f calls g calls f. Neither declares a source or a sink, so the
// worklist must still terminate (bounded by config.Config.TaskExecutionCap)
// with zero intersections rather than looping forever.
func TestSessionMutuallyRecursiveMethodsTerminate(t *testing.T) {
	resolver := newScopedJSONResolver(t, `{
		"com/example/App": {
			"methods": {
				"f:(Ljava/lang/String;)V": {
					"static": true,
					"instructions": [
						{"offset": 0, "opcode": 42},
						{"offset": 1, "opcode": 184, "operand": [0, 2]},
						{"offset": 4, "opcode": 177}
					],
					"blocks": [{"id": 0, "start": 0, "end": 5, "entry": true}],
					"frames": [
						{"offset": 0, "locals": ["reference"], "stack": []},
						{"offset": 1, "locals": ["reference"], "stack": ["reference"]},
						{"offset": 4, "locals": ["reference"], "stack": []}
					]
				},
				"g:(Ljava/lang/String;)V": {
					"static": true,
					"instructions": [
						{"offset": 0, "opcode": 42},
						{"offset": 1, "opcode": 184, "operand": [0, 1]},
						{"offset": 4, "opcode": 177}
					],
					"blocks": [{"id": 0, "start": 0, "end": 5, "entry": true}],
					"frames": [
						{"offset": 0, "locals": ["reference"], "stack": []},
						{"offset": 1, "locals": ["reference"], "stack": ["reference"]},
						{"offset": 4, "locals": ["reference"], "stack": []}
					]
				}
			},
			"methodrefs": {
				"1": {"class": "com/example/App", "name": "f", "descriptor": "(Ljava/lang/String;)V"},
				"2": {"class": "com/example/App", "name": "g", "descriptor": "(Ljava/lang/String;)V"}
			}
		}
	}`)

	rules := classfile.NewStaticRuleProvider()
	cfg := config.Default()
	cfg.TaskExecutionCap = 4
	session := NewSession(resolver, rules, cfg, logging.Default())

	entry := classfile.MethodRef{Class: "com/example/App", Name: "f", Descriptor: "(Ljava/lang/String;)V"}
	intersections, err := session.Analyze(context.Background(), entry, true)
	require.NoError(t, err)
	assert.Empty(t, intersections, "no source ever reaches a sink in this cycle")
}
