// Package progress records work-progress events and keeps each project's
// completed work equal to the sum of its events.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/store"
)

// Guard inspects the locked project just before a write and may veto it.
type Guard func(p *store.Project) error

type RecordInput struct {
	ID            string // optional; a fresh id is generated when empty
	ProjectID     string
	LeaderID      string
	CompletedWork float64
	TimeTaken     float64 // hours
	Date          time.Time
	Location      *store.Location
	Guard         Guard
}

type EditInput struct {
	UpdateID      string
	CompletedWork float64
	TimeTaken     *float64
	Location      *store.Location
	Guard         Guard
}

type Reconciler struct {
	backend store.Backend
	now     func() time.Time
}

func New(backend store.Backend) *Reconciler {
	return &Reconciler{backend: backend, now: time.Now}
}

// Record stores a new progress update and recomputes the project total in
// the same transaction.
func (r *Reconciler) Record(ctx context.Context, in RecordInput) (*store.ProgressUpdate, error) {
	if err := checkAmount("completedWork", in.CompletedWork); err != nil {
		return nil, err
	}
	if err := checkAmount("timeTaken", in.TimeTaken); err != nil {
		return nil, err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	now := r.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	u := &store.ProgressUpdate{
		ID:            in.ID,
		ProjectID:     in.ProjectID,
		LeaderID:      in.LeaderID,
		Date:          date.UTC(),
		CompletedWork: in.CompletedWork,
		TimeTaken:     in.TimeTaken,
		Location:      in.Location,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := r.backend.WithTx(ctx, func(tx store.Tx) error {
		p, err := lockProject(ctx, tx, in.ProjectID)
		if err != nil {
			return err
		}
		if in.Guard != nil {
			if err := in.Guard(p); err != nil {
				return err
			}
		}
		if err := tx.Insert(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return apperr.New(apperr.CodeDuplicateID, fmt.Sprintf("progress update %s already exists", u.ID))
			}
			return err
		}
		return r.reconcile(ctx, tx, p)
	})
	if err != nil {
		return nil, txErr("record progress", err)
	}
	return u, nil
}

// Edit overwrites the values of an existing update. Lowering the value
// lowers the project total; nothing is clamped.
func (r *Reconciler) Edit(ctx context.Context, in EditInput) (*store.ProgressUpdate, error) {
	if err := checkAmount("completedWork", in.CompletedWork); err != nil {
		return nil, err
	}
	if in.TimeTaken != nil {
		if err := checkAmount("timeTaken", *in.TimeTaken); err != nil {
			return nil, err
		}
	}

	var updated *store.ProgressUpdate
	err := r.backend.WithTx(ctx, func(tx store.Tx) error {
		u, err := store.GetProgress(ctx, tx, in.UpdateID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.New(apperr.CodeNotFound, "progress update not found")
			}
			return err
		}
		p, err := lockProject(ctx, tx, u.ProjectID)
		if err != nil {
			return err
		}
		if in.Guard != nil {
			if err := in.Guard(p); err != nil {
				return err
			}
		}
		u.CompletedWork = in.CompletedWork
		if in.TimeTaken != nil {
			u.TimeTaken = *in.TimeTaken
		}
		if in.Location != nil {
			u.Location = in.Location
		}
		u.UpdatedAt = r.now().UTC()
		if err := tx.Put(ctx, u); err != nil {
			return err
		}
		updated = u
		return r.reconcile(ctx, tx, p)
	})
	if err != nil {
		return nil, txErr("edit progress", err)
	}
	return updated, nil
}

// Recompute rebuilds a project's total from its updates.
func (r *Reconciler) Recompute(ctx context.Context, projectID string) (*store.Project, error) {
	var out *store.Project
	err := r.backend.WithTx(ctx, func(tx store.Tx) error {
		p, err := lockProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		out = p
		return r.reconcile(ctx, tx, p)
	})
	if err != nil {
		return nil, txErr("recompute progress", err)
	}
	return out, nil
}

// reconcile sets p.CompletedWork to the sum over every update of p, moves
// its status between active and completed to match, and writes p back.
func (r *Reconciler) reconcile(ctx context.Context, tx store.Tx, p *store.Project) error {
	updates, err := store.ProgressForProject(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	total := Sum(updates)
	status := store.StatusFor(total, p.TotalWork)
	if total == p.CompletedWork && status == p.Status {
		return nil
	}
	p.CompletedWork = total
	p.Status = status
	p.UpdatedAt = r.now().UTC()
	return tx.Put(ctx, p)
}

// Sum is the reference model for a project's completed work.
func Sum(updates []*store.ProgressUpdate) float64 {
	var total float64
	for _, u := range updates {
		total += u.CompletedWork
	}
	return total
}

func lockProject(ctx context.Context, tx store.Tx, id string) (*store.Project, error) {
	if err := tx.Lock(ctx, store.ProjectKey(id)); err != nil {
		return nil, err
	}
	p, err := store.GetProject(ctx, tx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeProjectNotFound, fmt.Sprintf("project %s not found", id))
		}
		return nil, err
	}
	return p, nil
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return apperr.New(apperr.CodeValidation, fmt.Sprintf("%s must be a non-negative number", field))
	}
	return nil
}

func txErr(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, store.ErrUnavailable) {
		return apperr.Wrap(apperr.CodeUnavailable, "store unavailable", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
