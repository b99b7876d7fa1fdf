// Package service orchestrates validated, gated writes across the identity
// store, the document store, the reconciler and the evidence pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/evidence"
	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/progress"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

const tracerName = "github.com/sadopc/sitelog/internal/service"

// maxWindowRetries bounds optimistic retries on project version conflicts.
const maxWindowRetries = 5

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Options struct {
	// Location is the site time zone used by the write windows.
	Location *time.Location
	// Clock overrides time.Now, mainly for tests.
	Clock  func() time.Time
	Logger *slog.Logger
}

type Service struct {
	backend    store.Backend
	users      *identity.Store
	reconciler *progress.Reconciler
	evidence   *evidence.Pipeline
	clock      func() time.Time
	loc        *time.Location
	log        *slog.Logger
	tracer     trace.Tracer
}

func New(backend store.Backend, users *identity.Store, pipeline *evidence.Pipeline, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		backend:    backend,
		users:      users,
		reconciler: progress.New(backend),
		evidence:   pipeline,
		clock:      opts.Clock,
		loc:        opts.Location,
		log:        opts.Logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Now returns the current time in the site time zone.
func (s *Service) Now() time.Time {
	return s.clock().In(s.loc)
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "service."+name, trace.WithAttributes(attrs...))
}

// finish records err on span and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
	}
	span.End()
}

// storeErr translates store sentinels for callers above the service.
func storeErr(op string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrUnavailable):
		return apperr.Wrap(apperr.CodeUnavailable, "store unavailable", err)
	case errors.Is(err, store.ErrConflict):
		return apperr.Wrap(apperr.CodeConflict, "concurrent update, retry", err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func validateID(id string) error {
	if !idPattern.MatchString(id) {
		return apperr.New(apperr.CodeValidation, "id must be 1-64 letters, digits, '-' or '_'")
	}
	return nil
}

// outsideWindow builds the gate rejection, echoing the window back.
func outsideWindow(what string, w *window.Window) error {
	days := make([]string, len(w.Days))
	for i, d := range w.DayNumbers() {
		days[i] = strconv.Itoa(d)
	}
	return apperr.WithMetadata(apperr.CodeOutsideWindow,
		fmt.Sprintf("%s are only accepted %s", what, w),
		map[string]string{
			"window":     w.String(),
			"startTime":  w.Start.String(),
			"endTime":    w.End.String(),
			"daysOfWeek": strings.Join(days, ","),
		})
}

func loadProject(ctx context.Context, d store.Docs, id string) (*store.Project, error) {
	p, err := store.GetProject(ctx, d, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeProjectNotFound, fmt.Sprintf("project %s not found", id))
		}
		return nil, storeErr("load project", err)
	}
	return p, nil
}

func requireOwner(p *store.Project, leaderID string) error {
	if p.LeaderID != leaderID {
		return apperr.New(apperr.CodeForbidden, "project is assigned to another leader")
	}
	return nil
}
