package handlers

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coatworks/sprayshop/pkg/shopstore"
)

// JobHandlers serves the sprayable-job hitlist the floor works from.
type JobHandlers struct {
	db *sql.DB
}

func NewJobHandlers(db *sql.DB) *JobHandlers {
	return &JobHandlers{db: db}
}

func (h *JobHandlers) Register(r chi.Router) {
	r.Get("/jobs/hitlist", h.Hitlist)
}

func (h *JobHandlers) Hitlist(w http.ResponseWriter, r *http.Request) {
	jobs, err := shopstore.ListSprayableJobs(r.Context(), h.db)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobsJSON(jobs)})
}
