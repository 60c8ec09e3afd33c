package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coatworks/sprayshop/pkg/shopstore"
	"github.com/coatworks/sprayshop/pkg/spraytime"
)

// BatchHandlers exposes the spray-batch engine over HTTP. Mutating routes
// follow the shop-floor convention: form posts redirect back to a page,
// timer taps answer small JSON bodies.
type BatchHandlers struct {
	engine *spraytime.Engine
	now    func() time.Time
}

func NewBatchHandlers(engine *spraytime.Engine) *BatchHandlers {
	return &BatchHandlers{
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (h *BatchHandlers) Register(r chi.Router) {
	r.Get("/batches", h.Dashboard)
	r.Post("/batches/start", h.StartBatch)
	r.Get("/batches/{batchID}", h.Detail)
	r.Post("/batches/{batchID}/add_job", h.AddJobs)
	r.Post("/batches/{batchID}/job/{jobID}/start", h.StartJob)
	r.Post("/batches/{batchID}/job/{jobID}/end", h.EndJob)
	r.Post("/batches/{batchID}/job/{jobID}/remove", h.RemoveJob)
	r.Post("/batches/{batchID}/start_all", h.StartAll)
	r.Post("/batches/{batchID}/pause_all", h.PauseAll)
	r.Post("/batches/{batchID}/resume_all", h.ResumeAll)
	r.Post("/batches/{batchID}/stop_all", h.StopAll)
	r.Post("/batches/{batchID}/close", h.Close)
}

func (h *BatchHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.engine.Dashboard(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"powders":        powdersJSON(dash.Powders),
		"open_batches":   batchesJSON(dash.OpenBatches),
		"recent_batches": batchesJSON(dash.RecentBatches),
	})
}

func (h *BatchHandlers) StartBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, r, fmt.Errorf("parse form: %w", spraytime.ErrValidation))
		return
	}

	powderID, err := parseFormID(r, "powder_id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	startWeight, err := parseFormFloat(r, "start_weight_kg")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	batch, err := h.engine.StartBatch(r.Context(), spraytime.StartBatchParams{
		PowderID:      powderID,
		Role:          strings.TrimSpace(r.FormValue("role")),
		Operator:      strings.TrimSpace(r.FormValue("operator")),
		Note:          strings.TrimSpace(r.FormValue("note")),
		StartWeightKg: startWeight,
	}, h.now())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/batches/%d", batch.ID), http.StatusSeeOther)
}

func (h *BatchHandlers) Detail(w http.ResponseWriter, r *http.Request) {
	batchID, err := urlID(r, "batchID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	detail, err := h.engine.Detail(r.Context(), batchID, h.now())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	jobs := make([]map[string]any, 0, len(detail.Jobs))
	for _, jt := range detail.Jobs {
		jobs = append(jobs, jobTimerJSON(jt))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batch":      batchJSON(detail.Batch),
		"powder":     powderJSON(detail.Powder),
		"jobs":       jobs,
		"candidates": jobsJSON(detail.Candidates),
	})
}

func (h *BatchHandlers) AddJobs(w http.ResponseWriter, r *http.Request) {
	batchID, err := urlID(r, "batchID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondWithError(w, r, fmt.Errorf("parse form: %w", spraytime.ErrValidation))
		return
	}
	jobIDs, err := parseIDList(r.Form["job_id"])
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if _, err := h.engine.Attach(r.Context(), batchID, jobIDs, h.now()); err != nil {
		respondWithError(w, r, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/batches/%d", batchID), http.StatusSeeOther)
}

func (h *BatchHandlers) StartJob(w http.ResponseWriter, r *http.Request) {
	h.jobOp(w, r, h.engine.Start)
}

func (h *BatchHandlers) EndJob(w http.ResponseWriter, r *http.Request) {
	h.jobOp(w, r, h.engine.Stop)
}

func (h *BatchHandlers) jobOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, batchID, jobID int64, now time.Time) error) {
	batchID, err := urlID(r, "batchID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	jobID, err := urlID(r, "jobID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := op(r.Context(), batchID, jobID, h.now()); err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *BatchHandlers) RemoveJob(w http.ResponseWriter, r *http.Request) {
	batchID, err := urlID(r, "batchID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	jobID, err := urlID(r, "jobID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.engine.Remove(r.Context(), batchID, jobID); err != nil {
		respondWithError(w, r, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/batches/%d", batchID), http.StatusSeeOther)
}

func (h *BatchHandlers) StartAll(w http.ResponseWriter, r *http.Request) {
	h.allOp(w, r, h.engine.StartAll)
}

func (h *BatchHandlers) PauseAll(w http.ResponseWriter, r *http.Request) {
	h.allOp(w, r, h.engine.PauseAll)
}

func (h *BatchHandlers) ResumeAll(w http.ResponseWriter, r *http.Request) {
	h.allOp(w, r, h.engine.ResumeAll)
}

func (h *BatchHandlers) StopAll(w http.ResponseWriter, r *http.Request) {
	h.allOp(w, r, h.engine.StopAll)
}

func (h *BatchHandlers) allOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, batchID int64, now time.Time) (int, error)) {
	batchID, err := urlID(r, "batchID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	count, err := op(r.Context(), batchID, h.now())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": count})
}

func (h *BatchHandlers) Close(w http.ResponseWriter, r *http.Request) {
	batchID, err := urlID(r, "batchID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondWithError(w, r, fmt.Errorf("parse form: %w", spraytime.ErrValidation))
		return
	}

	endWeight, err := parseFormFloat(r, "end_weight_kg")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	markSprayed, err := parseIDListOptional(r.Form["mark_sprayed"])
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	markFinished, err := parseIDListOptional(r.Form["mark_finished"])
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	err = h.engine.Close(r.Context(), batchID, spraytime.CloseParams{
		EndWeightKg:  endWeight,
		MarkSprayed:  markSprayed,
		MarkFinished: markFinished,
	}, h.now())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	http.Redirect(w, r, "/batches", http.StatusSeeOther)
}

func urlID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", param, raw, spraytime.ErrValidation)
	}
	return id, nil
}

func parseFormID(r *http.Request, field string) (int64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, spraytime.ErrValidation)
	}
	return id, nil
}

func parseFormFloat(r *http.Request, field string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, spraytime.ErrValidation)
	}
	return val, nil
}

func parseIDList(values []string) ([]int64, error) {
	ids, err := parseIDListOptional(values)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one job_id is required: %w", spraytime.ErrValidation)
	}
	return ids, nil
}

func parseIDListOptional(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q: %w", raw, spraytime.ErrValidation)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func batchJSON(b shopstore.Batch) map[string]any {
	return map[string]any{
		"id":              b.ID,
		"powder_id":       b.PowderID,
		"role":            b.Role,
		"operator":        b.Operator,
		"note":            b.Note,
		"started_at":      b.StartedAt,
		"ended_at":        b.EndedAt,
		"start_weight_kg": b.StartWeightKg,
		"end_weight_kg":   b.EndWeightKg,
		"used_kg":         b.UsedKg,
		"duration_min":    b.DurationMin,
		"open":            b.Open(),
	}
}

func batchesJSON(batches []shopstore.Batch) []map[string]any {
	out := make([]map[string]any, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchJSON(b))
	}
	return out
}

func powderJSON(p shopstore.Powder) map[string]any {
	return map[string]any{
		"id":              p.ID,
		"powder_color":    p.Color,
		"manufacturer":    p.Manufacturer,
		"product_code":    p.ProductCode,
		"on_hand_kg":      p.OnHandKg,
		"last_weighed_kg": p.LastWeighedKg,
		"last_weighed_at": p.LastWeighedAt,
	}
}

func powdersJSON(powders []shopstore.Powder) []map[string]any {
	out := make([]map[string]any, 0, len(powders))
	for _, p := range powders {
		out = append(out, powderJSON(p))
	}
	return out
}

func jobJSON(j shopstore.Job) map[string]any {
	return map[string]any{
		"id":           j.ID,
		"company":      j.Company,
		"color":        j.Color,
		"description":  j.Description,
		"priority":     j.Priority,
		"due_by":       j.DueBy,
		"status":       j.Status,
		"on_screen":    j.OnScreen,
		"completed_at": j.CompletedAt,
	}
}

func jobsJSON(jobs []shopstore.Job) []map[string]any {
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobJSON(j))
	}
	return out
}

func jobTimerJSON(jt spraytime.JobTimer) map[string]any {
	out := jobJSON(jt.Job)
	out["state"] = string(jt.State)
	out["elapsed_seconds"] = jt.ElapsedSeconds
	out["elapsed_minutes"] = jt.ElapsedMinutes
	out["time_min"] = jt.Timer.TimeMin
	out["start_ts"] = jt.Timer.StartTS
	out["end_ts"] = jt.Timer.EndTS
	out["running_since"] = jt.Timer.RunningSince
	return out
}
