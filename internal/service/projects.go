package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

type CreateProjectInput struct {
	ID        string // optional
	LeaderID  string
	Name      string
	Workers   int
	TotalWork float64
}

func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (_ *store.Project, err error) {
	ctx, span := s.start(ctx, "CreateProject", attribute.String("leader.id", in.LeaderID))
	defer func() { finish(span, err) }()

	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, apperr.New(apperr.CodeValidation, "name is required")
	case in.Workers <= 0:
		return nil, apperr.New(apperr.CodeValidation, "workers must be greater than zero")
	case in.TotalWork <= 0 || math.IsNaN(in.TotalWork) || math.IsInf(in.TotalWork, 0):
		return nil, apperr.New(apperr.CodeValidation, "totalWork must be greater than zero")
	case in.LeaderID == "":
		return nil, apperr.New(apperr.CodeValidation, "leaderId is required")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	} else if err := validateID(in.ID); err != nil {
		return nil, err
	}

	leader, err := s.users.ByID(ctx, in.LeaderID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeValidation, "leader not found")
		}
		return nil, err
	}
	if leader.Role != store.RoleLeader {
		return nil, apperr.New(apperr.CodeValidation, "assigned user is not a leader")
	}

	now := s.clock().UTC()
	p := &store.Project{
		ID:        in.ID,
		Name:      in.Name,
		LeaderID:  in.LeaderID,
		Workers:   in.Workers,
		TotalWork: in.TotalWork,
		Status:    store.ProjectActive,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := s.backend.Insert(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.New(apperr.CodeDuplicateID, fmt.Sprintf("project %s already exists", in.ID))
		}
		return nil, storeErr("create project", err)
	}
	s.log.InfoContext(ctx, "project created", "project_id", p.ID, "leader_id", p.LeaderID)
	return p, nil
}

func (s *Service) Project(ctx context.Context, id string) (_ *store.Project, err error) {
	ctx, span := s.start(ctx, "Project", attribute.String("project.id", id))
	defer func() { finish(span, err) }()
	return loadProject(ctx, s.backend, id)
}

// ListProjects returns all projects, or a leader's projects when leaderID is set.
func (s *Service) ListProjects(ctx context.Context, leaderID string) (_ []*store.Project, err error) {
	ctx, span := s.start(ctx, "ListProjects")
	defer func() { finish(span, err) }()

	projects, err := store.ListProjects(ctx, s.backend, leaderID)
	if err != nil {
		return nil, storeErr("list projects", err)
	}
	return projects, nil
}

// ProjectIndex maps project id to project, for reports.
func (s *Service) ProjectIndex(ctx context.Context) (map[string]*store.Project, error) {
	projects, err := s.ListProjects(ctx, "")
	if err != nil {
		return nil, err
	}
	idx := make(map[string]*store.Project, len(projects))
	for _, p := range projects {
		idx[p.ID] = p
	}
	return idx, nil
}

type WindowsInput struct {
	Update  *window.Window
	Payment *window.Window
}

// SetTimeWindows replaces both write windows of a project. A nil window
// removes that gate.
func (s *Service) SetTimeWindows(ctx context.Context, projectID string, in WindowsInput) (_ *store.Project, err error) {
	ctx, span := s.start(ctx, "SetTimeWindows", attribute.String("project.id", projectID))
	defer func() { finish(span, err) }()

	for _, w := range []*window.Window{in.Update, in.Payment} {
		if w == nil {
			continue
		}
		if err := w.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "invalid time window", err)
		}
	}

	for attempt := 1; ; attempt++ {
		p, err := loadProject(ctx, s.backend, projectID)
		if err != nil {
			return nil, err
		}
		p.UpdateTimeWindow = in.Update
		p.PaymentTimeWindow = in.Payment
		p.UpdatedAt = s.clock().UTC()

		err = s.backend.Replace(ctx, p, p.Version)
		if err == nil {
			p.Version++
			s.log.InfoContext(ctx, "time windows updated", "project_id", projectID)
			return p, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= maxWindowRetries {
			return nil, storeErr("set time windows", err)
		}
		s.log.DebugContext(ctx, "time window conflict, retrying", "project_id", projectID, "attempt", attempt)
	}
}

// RecomputeProject rebuilds completed work from the progress history.
func (s *Service) RecomputeProject(ctx context.Context, projectID string) (_ *store.Project, err error) {
	ctx, span := s.start(ctx, "RecomputeProject", attribute.String("project.id", projectID))
	defer func() { finish(span, err) }()

	p, err := s.reconciler.Recompute(ctx, projectID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "project recomputed", "project_id", projectID, "completed_work", p.CompletedWork)
	return p, nil
}
