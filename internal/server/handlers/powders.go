package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coatworks/sprayshop/pkg/shopstore"
	"github.com/coatworks/sprayshop/pkg/spraytime"
)

// PowderHandlers covers the powder inventory surface: listing stock,
// auditing the usage ledger, and manual on-hand corrections.
type PowderHandlers struct {
	db  *sql.DB
	now func() time.Time
}

func NewPowderHandlers(db *sql.DB) *PowderHandlers {
	return &PowderHandlers{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (h *PowderHandlers) Register(r chi.Router) {
	r.Get("/powders", h.List)
	r.Get("/powders/{powderID}/usage", h.Usage)
	r.Post("/powders/{powderID}/adjust", h.Adjust)
}

func (h *PowderHandlers) List(w http.ResponseWriter, r *http.Request) {
	powders, err := shopstore.ListPowders(r.Context(), h.db)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"powders": powdersJSON(powders)})
}

func (h *PowderHandlers) Usage(w http.ResponseWriter, r *http.Request) {
	powderID, err := urlID(r, "powderID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var (
		powder  *shopstore.Powder
		records []shopstore.UsageRecord
	)
	err = shopstore.WithTx(r.Context(), h.db, func(tx *sql.Tx) error {
		powder, err = shopstore.GetPowder(r.Context(), tx, powderID)
		if err != nil {
			return err
		}
		records, err = shopstore.ListUsageForPowder(r.Context(), tx, powderID)
		return err
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	usage := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		usage = append(usage, map[string]any{
			"usage_id":   rec.UsageID,
			"powder_id":  rec.PowderID,
			"job_id":     rec.JobID,
			"used_kg":    rec.UsedKg,
			"note":       rec.Note,
			"created_at": rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"powder": powderJSON(*powder),
		"usage":  usage,
	})
}

// Adjust overwrites a powder's on-hand weight and leaves an audit entry in
// the usage ledger. The entry records the delta, not the new absolute value.
func (h *PowderHandlers) Adjust(w http.ResponseWriter, r *http.Request) {
	powderID, err := urlID(r, "powderID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondWithError(w, r, fmt.Errorf("parse form: %w", spraytime.ErrValidation))
		return
	}

	onHand, err := parseFormFloat(r, "on_hand_kg")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if onHand < 0 {
		respondWithError(w, r, fmt.Errorf("on_hand_kg must not be negative: %w", spraytime.ErrValidation))
		return
	}
	note := strings.TrimSpace(r.FormValue("note"))
	if note == "" {
		note = "manual adjustment"
	}

	now := h.now()
	err = shopstore.WithTx(r.Context(), h.db, func(tx *sql.Tx) error {
		powder, err := shopstore.GetPowder(r.Context(), tx, powderID)
		if err != nil {
			return err
		}
		if err := shopstore.SetOnHand(r.Context(), tx, powderID, onHand); err != nil {
			return err
		}
		delta := powder.OnHandKg - onHand
		_, err = shopstore.AppendUsage(r.Context(), tx, powderID, nil, delta, note, now)
		return err
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	http.Redirect(w, r, "/powders", http.StatusSeeOther)
}
