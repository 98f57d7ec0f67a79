// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRuleProviderMethodAndFieldLookup(t *testing.T) {
	p := NewStaticRuleProvider()
	src := ColorSourceData
	p.AddMethodRule("com/example/Request", "getParameter", "(Ljava/lang/String;)Ljava/lang/String;", MethodColorRule{
		ResultColor: &src,
	})
	p.AddFieldRule("com/example/Request", "rawQuery", ColorSourceData)

	rule, ok := p.MethodRules("com/example/Request", "getParameter", "(Ljava/lang/String;)Ljava/lang/String;")
	require.True(t, ok)
	require.NotNil(t, rule.ResultColor)
	assert.Equal(t, ColorSourceData, *rule.ResultColor)

	_, ok = p.MethodRules("com/example/Request", "getParameter", "(I)V")
	assert.False(t, ok, "descriptor is part of the lookup key")

	color, ok := p.FieldRules("com/example/Request", "rawQuery")
	require.True(t, ok)
	assert.Equal(t, ColorSourceData, color)

	_, ok = p.FieldRules("com/example/Request", "absent")
	assert.False(t, ok)
}

func TestLoadRuleFileParsesMethodsAndFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	contents := `
methods:
  - class: com/example/sql/Statement
    name: execute
    descriptor: "(Ljava/lang/String;)V"
    params: [SourceData]
    result: null
  - class: com/example/Request
    name: getParameter
    descriptor: "(Ljava/lang/String;)Ljava/lang/String;"
    params: [null]
    result: SourceData
fields:
  - class: com/example/Request
    name: rawQuery
    color: SourceData
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	p, err := LoadRuleFile(path)
	require.NoError(t, err)

	execRule, ok := p.MethodRules("com/example/sql/Statement", "execute", "(Ljava/lang/String;)V")
	require.True(t, ok)
	require.Len(t, execRule.ParamColors, 1)
	require.NotNil(t, execRule.ParamColors[0])
	assert.Equal(t, ColorSourceData, *execRule.ParamColors[0])
	assert.Nil(t, execRule.ResultColor)

	getRule, ok := p.MethodRules("com/example/Request", "getParameter", "(Ljava/lang/String;)Ljava/lang/String;")
	require.True(t, ok)
	require.Len(t, getRule.ParamColors, 1)
	assert.Nil(t, getRule.ParamColors[0])
	require.NotNil(t, getRule.ResultColor)
	assert.Equal(t, ColorSourceData, *getRule.ResultColor)

	color, ok := p.FieldRules("com/example/Request", "rawQuery")
	require.True(t, ok)
	assert.Equal(t, ColorSourceData, color)
}

func TestLoadRuleFileMissingFile(t *testing.T) {
	_, err := LoadRuleFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
