// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/samber/lo"
)

// Document is the raw shape of a job's configuration file: a variables
// object and a steps object keyed by step key.
type Document struct {
	Variables map[string]string
	stepOrder []string
	stepRaw   map[string]stepRecord
}

// ParseDocument decodes a job configuration file. Unlike encoding/json's
// default map decoding, it rejects a steps object containing the same
// key twice instead of silently keeping the last occurrence.
func ParseDocument(data []byte) (*Document, error) {
	var shape struct {
		Variables map[string]string          `json:"variables"`
		Steps     json.RawMessage            `json:"steps"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("invalid job configuration JSON: %w", err)
	}

	steps, order, err := decodeStepsObject(shape.Steps)
	if err != nil {
		return nil, err
	}

	return &Document{
		Variables: shape.Variables,
		stepOrder: order,
		stepRaw:   steps,
	}, nil
}

func decodeStepsObject(raw json.RawMessage) (map[string]stepRecord, []string, error) {
	steps := map[string]stepRecord{}
	var order []string
	if len(raw) == 0 {
		return steps, order, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid steps object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("steps must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("invalid steps object: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("steps object keys must be strings")
		}
		if _, exists := steps[key]; exists {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}

		var rec stepRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, nil, fmt.Errorf("step %q: %w", key, err)
		}
		steps[key] = rec
		order = append(order, key)
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("invalid steps object: %w", err)
	}

	return steps, order, nil
}

// Graph is the validated, resolved dependency graph for one job.
type Graph struct {
	Steps      map[string]*Step
	Order      []string // step keys in configuration-file order
	AllStepKey string   // empty if no step declares dependencies "ALL"
}

// BuildJob resolves doc against env (applying Substitute to the string
// fields buildStep lists) and validates the resulting dependency graph.
func BuildJob(doc *Document, env Env) (*Graph, error) {
	g := &Graph{
		Steps: map[string]*Step{},
		Order: doc.stepOrder,
	}

	for _, key := range doc.stepOrder {
		step, isAll, err := buildStep(key, doc.stepRaw[key], env)
		if err != nil {
			return nil, err
		}
		if isAll {
			if g.AllStepKey != "" {
				return nil, fmt.Errorf("%w: %q and %q", ErrMultipleAllSteps, g.AllStepKey, key)
			}
			g.AllStepKey = key
		}
		g.Steps[key] = step
	}

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// DisableSteps force-disables every step in keys that exists in g,
// marking it Enabled = false. Unknown keys are ignored: the CLI's
// --disabled flag is a best-effort override, not a validated reference.
func (g *Graph) DisableSteps(keys []string) {
	for _, key := range keys {
		if step, ok := g.Steps[key]; ok {
			step.Enabled = false
		}
	}
}

// Dependencies returns key's in-edges: its explicit dependency list, or
// (for the ALL-step) every other step key, computed on demand rather
// than materialized.
func (g *Graph) Dependencies(key string) []string {
	step := g.Steps[key]
	if step == nil {
		return nil
	}
	if !step.IsAllStep {
		return step.Dependencies
	}
	return lo.Filter(g.Order, func(k string, _ int) bool { return k != key })
}

func (g *Graph) validate() error {
	for key, step := range g.Steps {
		if step.IsAllStep {
			continue
		}
		for _, dep := range step.Dependencies {
			if _, ok := g.Steps[dep]; !ok {
				return fmt.Errorf("%w: step %q depends on unknown step %q", ErrDanglingDependency, key, dep)
			}
		}
	}
	return g.detectCycle()
}

// detectCycle runs Kahn's algorithm over every step's in-edges,
// including the ALL-step's virtual edges. Any step left with unresolved
// in-degree after reduction indicates a cycle — including the case of a
// non-ALL step depending (directly or not) on the ALL-step, since the
// ALL-step virtually depends back on it.
func (g *Graph) detectCycle() error {
	inDegree := make(map[string]int, len(g.Order))
	dependents := make(map[string][]string, len(g.Order))

	for _, key := range g.Order {
		deps := g.Dependencies(key)
		inDegree[key] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], key)
		}
	}

	queue := lo.Filter(g.Order, func(k string, _ int) bool { return inDegree[k] == 0 })
	visited := 0
	for len(queue) > 0 {
		var next []string
		for _, key := range queue {
			visited++
			for _, dep := range dependents[key] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(g.Order) {
		return ErrCycleDetected
	}
	return nil
}
