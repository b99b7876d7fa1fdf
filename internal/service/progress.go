package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/progress"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

type SubmitProgressInput struct {
	ID            string // optional client id, makes retries safe
	LeaderID      string
	ProjectID     string
	CompletedWork float64
	TimeTaken     float64 // hours
	Location      *store.Location
}

type EditProgressInput struct {
	LeaderID      string
	UpdateID      string
	CompletedWork float64
	TimeTaken     *float64
}

// progressGuard checks ownership and the update window on the locked project.
func (s *Service) progressGuard(leaderID string) progress.Guard {
	return func(p *store.Project) error {
		if err := requireOwner(p, leaderID); err != nil {
			return err
		}
		if !window.IsOpen(p.UpdateTimeWindow, s.Now()) {
			return outsideWindow("progress updates", p.UpdateTimeWindow)
		}
		return nil
	}
}

func (s *Service) SubmitProgress(ctx context.Context, in SubmitProgressInput) (_ *store.ProgressUpdate, err error) {
	ctx, span := s.start(ctx, "SubmitProgress", attribute.String("project.id", in.ProjectID))
	defer func() { finish(span, err) }()

	if in.ProjectID == "" {
		return nil, apperr.New(apperr.CodeValidation, "projectId is required")
	}
	if in.ID != "" {
		if err := validateID(in.ID); err != nil {
			return nil, err
		}
	}

	u, err := s.reconciler.Record(ctx, progress.RecordInput{
		ID:            in.ID,
		ProjectID:     in.ProjectID,
		LeaderID:      in.LeaderID,
		CompletedWork: in.CompletedWork,
		TimeTaken:     in.TimeTaken,
		Date:          s.Now(),
		Location:      in.Location,
		Guard:         s.progressGuard(in.LeaderID),
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeOutsideWindow) {
			s.log.InfoContext(ctx, "progress rejected outside window", "project_id", in.ProjectID)
		}
		return nil, err
	}
	s.log.InfoContext(ctx, "progress recorded", "project_id", in.ProjectID, "update_id", u.ID, "completed_work", u.CompletedWork)
	return u, nil
}

func (s *Service) EditProgress(ctx context.Context, in EditProgressInput) (_ *store.ProgressUpdate, err error) {
	ctx, span := s.start(ctx, "EditProgress", attribute.String("progress.id", in.UpdateID))
	defer func() { finish(span, err) }()

	u, err := s.reconciler.Edit(ctx, progress.EditInput{
		UpdateID:      in.UpdateID,
		CompletedWork: in.CompletedWork,
		TimeTaken:     in.TimeTaken,
		Guard:         s.progressGuard(in.LeaderID),
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "progress edited", "project_id", u.ProjectID, "update_id", u.ID, "completed_work", u.CompletedWork)
	return u, nil
}

// ProgressForProject lists a project's updates in submission order.
func (s *Service) ProgressForProject(ctx context.Context, projectID string) (_ []*store.ProgressUpdate, err error) {
	ctx, span := s.start(ctx, "ProgressForProject", attribute.String("project.id", projectID))
	defer func() { finish(span, err) }()

	if _, err := loadProject(ctx, s.backend, projectID); err != nil {
		return nil, err
	}
	updates, err := store.ProgressForProject(ctx, s.backend, projectID)
	if err != nil {
		return nil, storeErr("list progress", err)
	}
	return updates, nil
}

func (s *Service) ProgressUpdate(ctx context.Context, id string) (*store.ProgressUpdate, error) {
	u, err := store.GetProgress(ctx, s.backend, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "progress update not found")
		}
		return nil, storeErr("load progress", err)
	}
	return u, nil
}
