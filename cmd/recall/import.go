package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavelanni/recall/internal/model"
	"github.com/pavelanni/recall/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import catalog JSON files (videos with their questions)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	cmd.Flags().String("db", "recall.db", "SQLite database path")
	addLogFlags(cmd)
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadCatalog(cmd.Context(), db, args)
}

// loadCatalog imports each file unless its content hash matches the last
// import of the same path. Questions are immutable, so a changed file only
// adds the questions that are new.
func loadCatalog(ctx context.Context, db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("catalog file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("catalog file changed since last import, existing questions are kept as they were", "path", path)
		}

		var entries []model.CatalogEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for i := range entries {
			entries[i].Normalize()
			if err := entries[i].Validate(); err != nil {
				return fmt.Errorf("%s entry %d: %w", path, i, err)
			}
		}

		res, err := db.ImportCatalog(ctx, entries)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported catalog",
			"path", path,
			"videos", res.Videos,
			"questions", res.Questions,
			"skipped", res.Skipped,
		)
	}
	return nil
}
