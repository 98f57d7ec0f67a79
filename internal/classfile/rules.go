// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Color is a taint-color tag. The taxonomy is extensible (spec.md §3
// PaintedColor): paintgraph ships SourceData and SinkTarget, and callers
// may register additional colors by name without changing this type.
type Color string

const (
	ColorSourceData Color = "SourceData"
	ColorSinkTarget Color = "SinkTarget"
)

// MethodColorRule is what RuleProvider.MethodRules returns: the declared
// color of each parameter (nil entries mean "no declared color") and,
// optionally, of the return value.
type MethodColorRule struct {
	ParamColors  []*Color
	ResultColor  *Color
}

// RuleProvider is the rule/data provider collaborator (spec.md §6),
// consulted only by the initial brushes (MethodParameterImplicitColorer,
// InvocationsImplicitColorer).
type RuleProvider interface {
	MethodRules(class ClassName, name, descriptor string) (MethodColorRule, bool)
	FieldRules(class ClassName, name string) (Color, bool)
}

// StaticRuleProvider is a reference RuleProvider backed by an in-memory
// table, typically loaded once from a YAML rule file at startup. It is not
// part of the engine's required external interface — spec.md §6 only
// specifies the interface — but a concrete implementation is needed for
// the CLI and for end-to-end tests to run without a live class-pool/rule
// service attached.
type StaticRuleProvider struct {
	methods map[methodKey]MethodColorRule
	fields  map[fieldKey]Color
}

type methodKey struct {
	class, name, descriptor string
}

type fieldKey struct {
	class, name string
}

// NewStaticRuleProvider returns an empty provider; populate it with
// AddMethodRule/AddFieldRule or load one from YAML with
// LoadRuleFile.
func NewStaticRuleProvider() *StaticRuleProvider {
	return &StaticRuleProvider{
		methods: make(map[methodKey]MethodColorRule),
		fields:  make(map[fieldKey]Color),
	}
}

// AddMethodRule registers rule for the given method signature.
func (p *StaticRuleProvider) AddMethodRule(class ClassName, name, descriptor string, rule MethodColorRule) {
	p.methods[methodKey{string(class), name, descriptor}] = rule
}

// AddFieldRule registers color for the given field.
func (p *StaticRuleProvider) AddFieldRule(class ClassName, name string, color Color) {
	p.fields[fieldKey{string(class), name}] = color
}

func (p *StaticRuleProvider) MethodRules(class ClassName, name, descriptor string) (MethodColorRule, bool) {
	rule, ok := p.methods[methodKey{string(class), name, descriptor}]
	return rule, ok
}

func (p *StaticRuleProvider) FieldRules(class ClassName, name string) (Color, bool) {
	color, ok := p.fields[fieldKey{string(class), name}]
	return color, ok
}

// ruleFile is the on-disk YAML shape loaded by LoadRuleFile:
//
//	methods:
//	  - class: com/example/Runtime
//	    name: exec
//	    descriptor: "(Ljava/lang/String;)V"
//	    params: [null, SourceData]
//	    result: null
//	fields:
//	  - class: com/example/Request
//	    name: rawQuery
//	    color: SourceData
type ruleFile struct {
	Methods []struct {
		Class      string   `yaml:"class"`
		Name       string   `yaml:"name"`
		Descriptor string   `yaml:"descriptor"`
		Params     []string `yaml:"params"`
		Result     string   `yaml:"result"`
	} `yaml:"methods"`
	Fields []struct {
		Class string `yaml:"class"`
		Name  string `yaml:"name"`
		Color string `yaml:"color"`
	} `yaml:"fields"`
}

// LoadRuleFile reads a YAML rule file and returns a populated
// StaticRuleProvider, mirroring the teacher CLI's config.yaml loading
// convention (cmd/aleutian reads a single YAML file at startup).
func LoadRuleFile(path string) (*StaticRuleProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %q: %w", path, err)
	}
	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse rule file %q: %w", path, err)
	}

	p := NewStaticRuleProvider()
	for _, m := range rf.Methods {
		rule := MethodColorRule{ParamColors: make([]*Color, len(m.Params))}
		for i, c := range m.Params {
			if c == "" || c == "null" {
				continue
			}
			color := Color(c)
			rule.ParamColors[i] = &color
		}
		if m.Result != "" && m.Result != "null" {
			color := Color(m.Result)
			rule.ResultColor = &color
		}
		p.AddMethodRule(ClassName(m.Class), m.Name, m.Descriptor, rule)
	}
	for _, f := range rf.Fields {
		p.AddFieldRule(ClassName(f.Class), f.Name, Color(f.Color))
	}
	return p, nil
}
