// Package emergency is the emergency travel response domain: a roster of
// twelve agents led by EmergencyCoordinator, the mock tools they call, the
// scripted scenarios and an offline provider that routes by keywords.
package emergency

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/jllopis/swarm/pkg/registry"
)

// Coordinator is the default active agent.
const Coordinator = "EmergencyCoordinator"

//go:embed agents.yaml
var manifestYAML []byte

// Manifest returns the built-in roster.
func Manifest() (*registry.Manifest, error) {
	m, err := registry.ParseManifestYAML(manifestYAML)
	if err != nil {
		return nil, fmt.Errorf("emergency: %w", err)
	}
	return m, nil
}

// Catalog indexes the toolbox tools by name.
func Catalog(tb *Toolbox) registry.Catalog {
	return registry.NewCatalog(tb.DomainTools()...)
}

// NewRegistry builds the built-in roster with tools from tb.
func NewRegistry(tb *Toolbox) (*registry.Registry, error) {
	m, err := Manifest()
	if err != nil {
		return nil, err
	}
	return m.Build(Catalog(tb))
}

// LoadRegistry builds the roster from the manifest at path, falling back to
// the built-in roster when path is empty. Tools resolve against tb.
func LoadRegistry(path string, tb *Toolbox) (*registry.Registry, string, error) {
	if path == "" {
		reg, err := NewRegistry(tb)
		return reg, Coordinator, err
	}
	m, err := registry.LoadManifest(path)
	if err != nil {
		return nil, "", err
	}
	reg, err := m.Build(Catalog(tb))
	if err != nil {
		return nil, "", err
	}
	return reg, m.DefaultAgent, nil
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
