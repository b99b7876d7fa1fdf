package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/export"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

type projectRequest struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Workers   int     `json:"workers"`
	TotalWork float64 `json:"totalWork"`
	LeaderID  string  `json:"leaderId"`
}

type windowsRequest struct {
	UpdateTimeWindow  *window.Window `json:"updateTimeWindow"`
	PaymentTimeWindow *window.Window `json:"paymentTimeWindow"`
}

// Leaders create projects for themselves; admins assign any leader.
func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	u := userFrom(r.Context())
	if u.Role == store.RoleLeader {
		if req.LeaderID == "" {
			req.LeaderID = u.ID
		}
		if req.LeaderID != u.ID {
			writeError(w, http.StatusForbidden, apperr.CodeForbidden, "leaders can only create their own projects", nil)
			return
		}
	}
	p, err := a.svc.CreateProject(r.Context(), service.CreateProjectInput{
		ID:        req.ID,
		LeaderID:  req.LeaderID,
		Name:      req.Name,
		Workers:   req.Workers,
		TotalWork: req.TotalWork,
	})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projectId": p.ID, "project": p})
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	leaderID := r.URL.Query().Get("leaderId")
	if u := userFrom(r.Context()); u.Role == store.RoleLeader {
		leaderID = u.ID
	}
	projects, err := a.svc.ListProjects(r.Context(), leaderID)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// visibleProject loads the {id} project, hiding other leaders' projects.
func (a *API) visibleProject(w http.ResponseWriter, r *http.Request) (*store.Project, bool) {
	p, err := a.svc.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeAppError(w, r, err)
		return nil, false
	}
	if u := userFrom(r.Context()); u.Role == store.RoleLeader && p.LeaderID != u.ID {
		writeError(w, http.StatusForbidden, apperr.CodeForbidden, "project is assigned to another leader", nil)
		return nil, false
	}
	return p, true
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.visibleProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

func (a *API) handleProjectProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := a.visibleProject(w, r)
	if !ok {
		return
	}
	updates, err := a.svc.ProgressForProject(r.Context(), p.ID)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": updates})
}

func (a *API) handleProjectProgressCSV(w http.ResponseWriter, r *http.Request) {
	p, ok := a.visibleProject(w, r)
	if !ok {
		return
	}
	updates, err := a.svc.ProgressForProject(r.Context(), p.ID)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="progress-`+p.ID+`.csv"`)
	if err := export.WriteProgressCSV(w, updates, map[string]*store.Project{p.ID: p}); err != nil {
		a.log.ErrorContext(r.Context(), "write progress csv", "project_id", p.ID, "error", err)
	}
}

func (a *API) handleProjectPayments(w http.ResponseWriter, r *http.Request) {
	p, ok := a.visibleProject(w, r)
	if !ok {
		return
	}
	payments, err := a.svc.PaymentsForProject(r.Context(), p.ID)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *API) handleProjectPaymentsCSV(w http.ResponseWriter, r *http.Request) {
	p, ok := a.visibleProject(w, r)
	if !ok {
		return
	}
	payments, err := a.svc.PaymentsForProject(r.Context(), p.ID)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="payments-`+p.ID+`.csv"`)
	if err := export.WritePaymentsCSV(w, payments, map[string]*store.Project{p.ID: p}); err != nil {
		a.log.ErrorContext(r.Context(), "write payments csv", "project_id", p.ID, "error", err)
	}
}

func (a *API) handleSetWindows(w http.ResponseWriter, r *http.Request) {
	var req windowsRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	p, err := a.svc.SetTimeWindows(r.Context(), chi.URLParam(r, "id"), service.WindowsInput{
		Update:  req.UpdateTimeWindow,
		Payment: req.PaymentTimeWindow,
	})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

func (a *API) handleRecompute(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.RecomputeProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}
