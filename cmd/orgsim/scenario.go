package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openspawn/openspawn-sub002/internal/persistence/snapshot"
	"github.com/openspawn/openspawn-sub002/internal/sim/model"
	"github.com/openspawn/openspawn-sub002/internal/sim/scenarios"
	"github.com/openspawn/openspawn-sub002/internal/sim/tuning"
)

// loadScenario accepts a built-in name, a JSON fixture path or a .snap.zst
// snapshot. A snapshot seeds a fresh run from its captured state.
func loadScenario(ref string) (model.Scenario, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = "fresh"
	}
	if slices.Contains(scenarios.Names(), ref) {
		return scenarios.Get(ref)
	}
	if strings.HasSuffix(ref, ".snap.zst") {
		snap, err := snapshot.ReadSnapshot(ref)
		if err != nil {
			return model.Scenario{}, fmt.Errorf("read snapshot: %w", err)
		}
		return snap.Scenario, nil
	}
	return scenarios.Load(ref)
}

func loadTuning(path string) (tuning.Tuning, error) {
	if strings.TrimSpace(path) == "" {
		return tuning.Defaults(), nil
	}
	return tuning.Load(path)
}

// runManifest pins everything replay needs to rebuild a run.
type runManifest struct {
	Source    string         `json:"source"`
	Seed      int64          `json:"seed"`
	StartTime time.Time      `json:"start_time"`
	Tuning    tuning.Tuning  `json:"tuning"`
	Scenario  model.Scenario `json:"scenario"`
}

const manifestName = "run.json"

func writeManifest(runDir string, m runManifest) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runDir, manifestName), b, 0o644)
}

func readManifest(runDir string) (runManifest, error) {
	var m runManifest
	b, err := os.ReadFile(filepath.Join(runDir, manifestName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", manifestName, err)
	}
	return m, nil
}

func newScenariosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range scenarios.Names() {
				sc, err := scenarios.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s agents=%d tasks=%d  %s\n", name, len(sc.Agents), len(sc.Tasks), sc.Description)
			}
			return nil
		},
	}
}
