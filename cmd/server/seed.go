package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/phrazzld/lexis-api/internal/domain"
)

// seedCatalog loads catalog items from a JSON array into the memory store.
// The postgres catalog is owned by the content service and is not seeded here.
func (app *application) seedCatalog(path string) error {
	if app.memStore == nil {
		return fmt.Errorf("--seed-items requires the %s backend", backendMemory)
	}
	items, err := readSeedItems(path)
	if err != nil {
		return err
	}
	app.memStore.AddItems(items...)
	app.logger.Info("catalog seeded", slog.Int("items", len(items)), slog.String("path", path))
	return nil
}

func readSeedItems(path string) ([]domain.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var items []domain.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			return nil, fmt.Errorf("seed item %d has no id", i)
		}
		if items[i].Difficulty == "" {
			items[i].Difficulty = domain.DifficultyBeginner
		}
	}
	return items, nil
}
