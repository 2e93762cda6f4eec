// Command cleardata permanently deletes all rows from every MindMate table
// after an interactive confirmation. Schema and extensions are preserved.
package main

import (
	"context"
	"log"
	"os"

	"github.com/mindmate-health/mindmate/internal/cleanup"
	"github.com/mindmate-health/mindmate/internal/config"
	"github.com/mindmate-health/mindmate/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DatabaseURL, cfg.MemoryEmbeddingDim)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()

	runner := &cleanup.Runner{
		Store: st,
		In:    os.Stdin,
		Out:   os.Stdout,
	}
	results, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("cleanup failed: %v", err)
	}
	if cleanup.Failed(results) {
		os.Exit(1)
	}
}
