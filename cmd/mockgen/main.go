package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"strategy-mcp/cmd/mockgen/engine"
	"strategy-mcp/internal/store"
)

func main() {
	scenario := flag.String("scenario", engine.ScenarioHealthy, "Scenario to generate: healthy, slipping, gapped")
	backend := flag.String("backend", store.BackendJSON, "Storage backend: json or sqlite")
	outDir := flag.String("out", ".", "Data directory to write the portfolio into")
	count := flag.Int("count", 12, "Number of milestones to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Count:    *count,
		Seed:     *seed,
		Now:      time.Now(),
	}

	fmt.Printf("Generating scenario '%s' (Count: %d, Seed: %d) to %s...\n", cfg.Scenario, cfg.Count, cfg.Seed, *outDir)

	st, err := store.Open(*backend, *outDir)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := engine.Save(context.Background(), st, engine.Generate(cfg)); err != nil {
		fmt.Printf("Failed to save mock portfolio: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
