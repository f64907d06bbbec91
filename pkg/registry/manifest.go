// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest declares a set of agents in YAML or JSON.
type Manifest struct {
	DefaultAgent string          `yaml:"default_agent" json:"default_agent"`
	Agents       []AgentManifest `yaml:"agents" json:"agents"`
}

// AgentManifest declares one agent. Tools are referenced by name and
// resolved against a catalog when the manifest is applied.
type AgentManifest struct {
	Name     string            `yaml:"name" json:"name"`
	Prompt   string            `yaml:"prompt" json:"prompt"`
	Tools    []string          `yaml:"tools" json:"tools"`
	Handoffs []HandoffManifest `yaml:"handoffs" json:"handoffs"`
}

// HandoffManifest declares a handoff to Target.
type HandoffManifest struct {
	Target      string `yaml:"target" json:"target"`
	Description string `yaml:"description" json:"description"`
}

// Catalog resolves tool names referenced by a manifest.
type Catalog map[string]*core.DomainTool

// NewCatalog indexes tools by name.
func NewCatalog(tools ...*core.DomainTool) Catalog {
	c := make(Catalog, len(tools))
	for _, t := range tools {
		c[t.Name()] = t
	}
	return c
}

// LoadManifest reads a manifest from a YAML or JSON file.
func LoadManifest(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseManifestJSON(data)
	default:
		return ParseManifestYAML(data)
	}
}

// ParseManifestYAML decodes a YAML manifest.
func ParseManifestYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest yaml: %w", err)
	}
	return &m, nil
}

// ParseManifestJSON decodes a JSON manifest.
func ParseManifestJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest json: %w", err)
	}
	return &m, nil
}

// Build registers every agent of the manifest and validates the result.
func (m *Manifest) Build(catalog Catalog) (*Registry, error) {
	reg := New()
	for _, am := range m.Agents {
		caps := make([]core.Capability, 0, len(am.Tools)+len(am.Handoffs))
		for _, name := range am.Tools {
			tool, ok := catalog[name]
			if !ok {
				return nil, errors.New(errors.CodeInvalidInput, "unknown tool "+name, nil).
					WithContext("agent", am.Name).
					WithContext("tool", name)
			}
			caps = append(caps, tool)
		}
		for _, h := range am.Handoffs {
			caps = append(caps, core.NewHandoff(h.Target, h.Description))
		}
		if err := reg.Define(am.Name, am.Prompt, caps...); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if m.DefaultAgent != "" && !reg.Has(m.DefaultAgent) {
		return nil, UnknownAgent(m.DefaultAgent)
	}
	return reg, nil
}
