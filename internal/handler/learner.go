package handler

import (
	"net/http"
	"strings"

	"github.com/pavelanni/recall/internal/model"
)

// LearnerHeader carries the learner id. Requests without it act as the
// configured default learner.
const LearnerHeader = "X-Learner-ID"

const maxLearnerIDLen = 128

func (h *Handler) learnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(LearnerHeader))
		if id == "" {
			id = h.config.DefaultLearner
		}
		if len(id) > maxLearnerIDLen {
			writeError(w, r, model.ErrValidation)
			return
		}
		ctx := model.ContextWithLearner(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func learnerID(r *http.Request) string {
	return model.LearnerFromContext(r.Context())
}
