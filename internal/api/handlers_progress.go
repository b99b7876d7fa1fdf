package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/store"
)

type progressRequest struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"projectId"`
	CompletedWork float64         `json:"completedWork"`
	TimeTaken     float64         `json:"timeTaken"`
	Location      *store.Location `json:"location"`
}

type editProgressRequest struct {
	CompletedWork float64  `json:"completedWork"`
	TimeTaken     *float64 `json:"timeTaken"`
}

func (a *API) handleSubmitProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	u, err := a.svc.SubmitProgress(r.Context(), service.SubmitProgressInput{
		ID:            req.ID,
		LeaderID:      userFrom(r.Context()).ID,
		ProjectID:     req.ProjectID,
		CompletedWork: req.CompletedWork,
		TimeTaken:     req.TimeTaken,
		Location:      req.Location,
	})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"update": u})
}

func (a *API) handleEditProgress(w http.ResponseWriter, r *http.Request) {
	var req editProgressRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	u, err := a.svc.EditProgress(r.Context(), service.EditProgressInput{
		LeaderID:      userFrom(r.Context()).ID,
		UpdateID:      chi.URLParam(r, "id"),
		CompletedWork: req.CompletedWork,
		TimeTaken:     req.TimeTaken,
	})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"update": u})
}
