package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sadopc/sitelog/internal/export"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/store"
)

type vehicleRequest struct {
	Model        string `json:"model"`
	Registration string `json:"registration"`
}

type driverRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	License   string `json:"license"`
	VehicleID string `json:"vehicleId"`
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.svc.Dashboard(r.Context())
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleLeaderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.LeaderStats(r.Context())
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaders": stats})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.Users(r.Context(), store.Role(r.URL.Query().Get("role")))
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteUser(r.Context(), chi.URLParam(r, "email")); err != nil {
		a.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vs, err := a.svc.Vehicles(r.Context())
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vs})
}

func (a *API) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	v, err := a.svc.CreateVehicle(r.Context(), service.VehicleInput{Model: req.Model, Registration: req.Registration})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"vehicle": v})
}

func (a *API) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteVehicle(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	ds, err := a.svc.Drivers(r.Context())
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": ds})
}

func (a *API) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	d, err := a.svc.CreateDriver(r.Context(), service.DriverInput{
		Name:      req.Name,
		Phone:     req.Phone,
		License:   req.License,
		VehicleID: req.VehicleID,
	})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"driver": d})
}

func (a *API) handleDeleteDriver(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteDriver(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleBackup(w http.ResponseWriter, r *http.Request) {
	b, err := a.svc.Snapshot(r.Context())
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="sitelog-backup-`+b.ExportedAt.Format("20060102-150405")+`.json"`)
	if err := export.WriteJSON(w, b); err != nil {
		a.log.ErrorContext(r.Context(), "write backup", "error", err)
	}
}
