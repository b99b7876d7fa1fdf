package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/export"
	"github.com/sadopc/sitelog/internal/store"
)

type ProjectBuckets struct {
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	NotStarted int `json:"notStarted"`
}

type Dashboard struct {
	TotalWork       float64            `json:"totalWork"`
	CompletedWork   float64            `json:"completedWork"`
	PaidAmount      decimal.Decimal    `json:"paidAmount"`
	PendingPayments int                `json:"pendingPayments"`
	Projects        ProjectBuckets     `json:"projects"`
	UsersByRole     map[store.Role]int `json:"usersByRole"`
}

// Dashboard aggregates work, payments, projects and accounts.
func (s *Service) Dashboard(ctx context.Context) (_ *Dashboard, err error) {
	ctx, span := s.start(ctx, "Dashboard")
	defer func() { finish(span, err) }()

	projects, err := store.ListProjects(ctx, s.backend, "")
	if err != nil {
		return nil, storeErr("dashboard projects", err)
	}
	payments, err := store.ListPayments(ctx, s.backend)
	if err != nil {
		return nil, storeErr("dashboard payments", err)
	}
	users, err := s.users.List(ctx, "")
	if err != nil {
		return nil, err
	}

	d := &Dashboard{PaidAmount: decimal.Zero, UsersByRole: make(map[store.Role]int)}
	for _, p := range projects {
		d.TotalWork += p.TotalWork
		d.CompletedWork += p.CompletedWork
		switch {
		case p.Completed():
			d.Projects.Completed++
		case p.CompletedWork > 0:
			d.Projects.InProgress++
		default:
			d.Projects.NotStarted++
		}
	}
	for _, pr := range payments {
		switch pr.Status {
		case store.PaymentPaid:
			d.PaidAmount = d.PaidAmount.Add(pr.TotalAmount)
		case store.PaymentPending, store.PaymentApproved:
			d.PendingPayments++
		}
	}
	for _, r := range store.Roles {
		d.UsersByRole[r] = 0
	}
	for _, u := range users {
		d.UsersByRole[u.Role]++
	}
	return d, nil
}

type LeaderStat struct {
	LeaderID          string `json:"leaderId"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	TotalProjects     int    `json:"totalProjects"`
	CompletedProjects int    `json:"completedProjects"`
}

// LeaderStats counts projects and completed projects per leader.
func (s *Service) LeaderStats(ctx context.Context) (_ []LeaderStat, err error) {
	ctx, span := s.start(ctx, "LeaderStats")
	defer func() { finish(span, err) }()

	leaders, err := s.users.List(ctx, store.RoleLeader)
	if err != nil {
		return nil, err
	}
	projects, err := store.ListProjects(ctx, s.backend, "")
	if err != nil {
		return nil, storeErr("leader stats", err)
	}

	byLeader := make(map[string]*LeaderStat, len(leaders))
	out := make([]LeaderStat, len(leaders))
	for i, l := range leaders {
		out[i] = LeaderStat{LeaderID: l.ID, Name: l.Name, Email: l.Email}
		byLeader[l.ID] = &out[i]
	}
	for _, p := range projects {
		st, ok := byLeader[p.LeaderID]
		if !ok {
			continue
		}
		st.TotalProjects++
		if p.Completed() {
			st.CompletedProjects++
		}
	}
	return out, nil
}

// ============================================================
// Vehicles and drivers
// ============================================================

type VehicleInput struct {
	Model        string
	Registration string
}

func (s *Service) CreateVehicle(ctx context.Context, in VehicleInput) (_ *store.Vehicle, err error) {
	ctx, span := s.start(ctx, "CreateVehicle")
	defer func() { finish(span, err) }()

	in.Model = strings.TrimSpace(in.Model)
	in.Registration = strings.ToUpper(strings.TrimSpace(in.Registration))
	if in.Model == "" || in.Registration == "" {
		return nil, apperr.New(apperr.CodeValidation, "model and registration are required")
	}
	v := &store.Vehicle{ID: uuid.NewString(), Model: in.Model, Registration: in.Registration, CreatedAt: s.clock().UTC()}
	if err := s.backend.Insert(ctx, v); err != nil {
		return nil, storeErr("create vehicle", err)
	}
	return v, nil
}

func (s *Service) Vehicles(ctx context.Context) ([]*store.Vehicle, error) {
	vs, err := store.ListVehicles(ctx, s.backend)
	if err != nil {
		return nil, storeErr("list vehicles", err)
	}
	return vs, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	return s.deleteDoc(ctx, store.VehicleKey(id), "vehicle not found")
}

type DriverInput struct {
	Name      string
	Phone     string
	License   string
	VehicleID string
}

func (s *Service) CreateDriver(ctx context.Context, in DriverInput) (_ *store.Driver, err error) {
	ctx, span := s.start(ctx, "CreateDriver")
	defer func() { finish(span, err) }()

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || strings.TrimSpace(in.License) == "" {
		return nil, apperr.New(apperr.CodeValidation, "name and license are required")
	}
	if in.VehicleID != "" {
		if _, err := s.backend.Get(ctx, store.VehicleKey(in.VehicleID)); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.New(apperr.CodeValidation, "vehicle not found")
			}
			return nil, storeErr("create driver", err)
		}
	}
	d := &store.Driver{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Phone:     strings.TrimSpace(in.Phone),
		License:   strings.TrimSpace(in.License),
		VehicleID: in.VehicleID,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.backend.Insert(ctx, d); err != nil {
		return nil, storeErr("create driver", err)
	}
	return d, nil
}

func (s *Service) Drivers(ctx context.Context) ([]*store.Driver, error) {
	ds, err := store.ListDrivers(ctx, s.backend)
	if err != nil {
		return nil, storeErr("list drivers", err)
	}
	return ds, nil
}

func (s *Service) DeleteDriver(ctx context.Context, id string) error {
	return s.deleteDoc(ctx, store.DriverKey(id), "driver not found")
}

func (s *Service) deleteDoc(ctx context.Context, key, notFound string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.CodeNotFound, notFound)
		}
		return storeErr("delete", err)
	}
	return nil
}

// ============================================================
// Backup
// ============================================================

// Snapshot collects every collection for a backup export.
func (s *Service) Snapshot(ctx context.Context) (_ *export.Backup, err error) {
	ctx, span := s.start(ctx, "Snapshot")
	defer func() { finish(span, err) }()

	b := &export.Backup{ExportedAt: s.clock().UTC()}
	if b.Users, err = s.users.List(ctx, ""); err != nil {
		return nil, err
	}
	if b.Projects, err = store.ListProjects(ctx, s.backend, ""); err != nil {
		return nil, storeErr("backup projects", err)
	}
	if b.ProgressUpdates, err = store.ListProgress(ctx, s.backend); err != nil {
		return nil, storeErr("backup progress", err)
	}
	if b.PaymentRequests, err = store.ListPayments(ctx, s.backend); err != nil {
		return nil, storeErr("backup payments", err)
	}
	if b.Vehicles, err = store.ListVehicles(ctx, s.backend); err != nil {
		return nil, storeErr("backup vehicles", err)
	}
	if b.Drivers, err = store.ListDrivers(ctx, s.backend); err != nil {
		return nil, storeErr("backup drivers", err)
	}
	b.Tally()
	return b, nil
}
