// Package scenarios provides the built-in starting organizations and loads
// scenario fixtures from JSON.
package scenarios

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

//go:embed fixtures/*.json
var fixtureFS embed.FS

const schemaFile = "fixtures/scenario.schema.json"

var builtins = map[string]func() (model.Scenario, error){
	"fresh":   func() (model.Scenario, error) { return Fresh(), nil },
	"startup": func() (model.Scenario, error) { return loadEmbedded("fixtures/startup.json") },
}

// Names lists the built-in scenarios in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns a fresh copy of a built-in scenario.
func Get(name string) (model.Scenario, error) {
	build, ok := builtins[name]
	if !ok {
		return model.Scenario{}, fmt.Errorf("unknown scenario %q (available: %v)", name, Names())
	}
	return build()
}

// Fresh is a brand new organization: one active level 10 agent and nothing else.
func Fresh() model.Scenario {
	return model.Scenario{
		Name:        "fresh",
		Description: "Empty organization with a single COO",
		Agents: []model.Agent{{
			ID:              "a0000000-0000-0000-0000-000000000001",
			AgentID:         "agent_dennis",
			Name:            "Agent Dennis",
			Role:            model.RoleHR,
			Level:           model.MaxLevel,
			Status:          model.AgentActive,
			Model:           "claude-sonnet-4",
			Domain:          "Operations",
			CreatedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			OpeningBalance:  1000,
			OpeningEarnings: 1000,
			TrustScore:      model.DefaultTrustScore,
			ReputationLevel: model.ReputationNew,
		}},
	}
}

// Load reads a scenario fixture from path. The document is checked against
// the scenario JSON Schema before it is decoded and validated.
func Load(path string) (model.Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Scenario{}, err
	}
	sc, err := Parse(raw)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a scenario fixture document.
func Parse(raw []byte) (model.Scenario, error) {
	schema, err := compileSchema()
	if err != nil {
		return model.Scenario{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Scenario{}, fmt.Errorf("decode: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return model.Scenario{}, fmt.Errorf("schema: %w", err)
	}

	var sc model.Scenario
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&sc); err != nil {
		return model.Scenario{}, fmt.Errorf("decode: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return model.Scenario{}, err
	}
	return sc, nil
}

func loadEmbedded(name string) (model.Scenario, error) {
	raw, err := fixtureFS.ReadFile(name)
	if err != nil {
		return model.Scenario{}, err
	}
	sc, err := Parse(raw)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("%s: %w", name, err)
	}
	return sc, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	raw, err := fixtureFS.ReadFile(schemaFile)
	if err != nil {
		return nil, err
	}
	s, err := jsonschema.CompileString("scenario.schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile scenario schema: %w", err)
	}
	return s, nil
}
