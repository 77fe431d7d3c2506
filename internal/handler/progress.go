package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.progress.Overview(r.Context(), learnerID(r), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (h *Handler) handleStreak(w http.ResponseWriter, r *http.Request) {
	info, err := h.progress.Streak(r.Context(), learnerID(r), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	stats, err := h.progress.Daily(r.Context(), learnerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleVideoMastery(w http.ResponseWriter, r *http.Request) {
	vm, err := h.progress.VideoMastery(r.Context(), learnerID(r), chi.URLParam(r, "videoID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vm)
}
