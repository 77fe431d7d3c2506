package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/recall/internal/progress"
	"github.com/pavelanni/recall/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a learner's cards, answer log and statistics as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "recall.db", "SQLite database path")
	f.String("learner", "default-learner", "Learner id to export")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportLearner(cmd.Context(), v.GetString("learner"), time.Now())
	if err != nil {
		return fmt.Errorf("export learner: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func rebuildStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild-stats",
		Short: "Recompute daily statistics from the answer and completion logs",
		RunE:  runRebuildStats,
	}
	f := cmd.Flags()
	f.String("db", "recall.db", "SQLite database path")
	f.String("learner", "", "Learner id (empty rebuilds every learner)")
	addLogFlags(cmd)
	return cmd
}

func runRebuildStats(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	learners := []string{v.GetString("learner")}
	if learners[0] == "" {
		if learners, err = db.ListLearners(ctx); err != nil {
			return fmt.Errorf("list learners: %w", err)
		}
	}

	agg := progress.New(db, progress.Config{})
	for _, id := range learners {
		if err := agg.Rebuild(ctx, id); err != nil {
			return err
		}
		slog.Info("rebuilt daily stats", "learner", id)
	}
	return nil
}
