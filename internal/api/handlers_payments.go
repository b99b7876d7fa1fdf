package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/evidence"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/store"
)

type photoRequest struct {
	DataURL   string          `json:"dataUrl"`
	Timestamp time.Time       `json:"timestamp"`
	Location  *store.Location `json:"location"`
}

type purposeRequest struct {
	Type    store.PurposeType `json:"type"`
	Amount  decimal.Decimal   `json:"amount"`
	Images  []photoRequest    `json:"images"`
	Remarks string            `json:"remarks"`
}

type paymentRequest struct {
	ID               string           `json:"id"`
	ProjectID        string           `json:"projectId"`
	ProgressUpdateID string           `json:"progressUpdateId"`
	Purposes         []purposeRequest `json:"purposes"`
}

type statusRequest struct {
	Status store.PaymentStatus `json:"status"`
}

func (a *API) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	purposes := make([]service.PurposeInput, len(req.Purposes))
	for i, p := range req.Purposes {
		uploads := make([]evidence.Upload, len(p.Images))
		for j, img := range p.Images {
			up, err := evidence.DecodeDataURL(img.DataURL)
			if err != nil {
				a.writeAppError(w, r, fmt.Errorf("purpose %d image %d: %w", i+1, j+1, err))
				return
			}
			up.CapturedAt = img.Timestamp
			up.Location = img.Location
			uploads[j] = up
		}
		purposes[i] = service.PurposeInput{
			Type:    p.Type,
			Amount:  p.Amount,
			Images:  uploads,
			Remarks: p.Remarks,
		}
	}

	id, err := a.svc.SubmitPaymentRequest(r.Context(), service.PaymentInput{
		ID:               req.ID,
		LeaderID:         userFrom(r.Context()).ID,
		ProjectID:        req.ProjectID,
		ProgressUpdateID: req.ProgressUpdateID,
		Purposes:         purposes,
	})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentId": id})
}

func (a *API) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	pr, err := a.svc.Payment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	if u := userFrom(r.Context()); u.Role == store.RoleLeader && pr.LeaderID != u.ID {
		writeError(w, http.StatusForbidden, apperr.CodeForbidden, "payment belongs to another leader", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": pr})
}

func (a *API) handleSetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	pr, err := a.svc.SetPaymentStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": pr})
}
