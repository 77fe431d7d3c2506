package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pavelanni/recall/internal/model"
)

// handleCatalog is the ingestion boundary: it accepts a list of videos with
// their questions. Questions that already exist are left untouched.
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var entries []model.CatalogEntry
	if err := decodeJSON(w, r, maxCatalogBytes, &entries); err != nil {
		writeError(w, r, err)
		return
	}
	for i := range entries {
		entries[i].Normalize()
		if err := entries[i].Validate(); err != nil {
			writeError(w, r, fmt.Errorf("entry %d: %w", i, err))
			return
		}
	}

	res, err := h.store.ImportCatalog(r.Context(), entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("catalog imported",
		"learner", learnerID(r),
		"videos", res.Videos,
		"questions", res.Questions,
		"skipped", res.Skipped,
	)
	writeJSON(w, http.StatusOK, res)
}
