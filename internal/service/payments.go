package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/evidence"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

type PurposeInput struct {
	Type    store.PurposeType
	Amount  decimal.Decimal
	Images  []evidence.Upload
	Remarks string
}

type PaymentInput struct {
	ID               string // optional client id
	LeaderID         string
	ProjectID        string
	ProgressUpdateID string
	Purposes         []PurposeInput
}

// statusTransitions lists the allowed next states of a payment request.
var statusTransitions = map[store.PaymentStatus][]store.PaymentStatus{
	store.PaymentPending:  {store.PaymentApproved, store.PaymentRejected},
	store.PaymentApproved: {store.PaymentPaid, store.PaymentRejected},
}

// TotalAmount sums the purpose amounts.
func TotalAmount(purposes []store.PaymentPurpose) decimal.Decimal {
	total := decimal.Zero
	for _, p := range purposes {
		total = total.Add(p.Amount)
	}
	return total
}

// SubmitPaymentRequest validates the request, converts every image, and
// writes the payment only if the payment window is open at write time.
// Any failure leaves nothing persisted.
func (s *Service) SubmitPaymentRequest(ctx context.Context, in PaymentInput) (_ string, err error) {
	ctx, span := s.start(ctx, "SubmitPaymentRequest", attribute.String("project.id", in.ProjectID))
	defer func() { finish(span, err) }()

	if in.ID == "" {
		in.ID = uuid.NewString()
	} else if err := validateID(in.ID); err != nil {
		return "", err
	}

	project, err := loadProject(ctx, s.backend, in.ProjectID)
	if err != nil {
		return "", err
	}
	if err := requireOwner(project, in.LeaderID); err != nil {
		return "", err
	}
	update, err := store.GetProgress(ctx, s.backend, in.ProgressUpdateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.New(apperr.CodeValidation, "progress update not found")
		}
		return "", storeErr("load progress", err)
	}
	if update.ProjectID != in.ProjectID {
		return "", apperr.New(apperr.CodeValidation, "progress update belongs to another project")
	}

	if len(in.Purposes) == 0 {
		return "", apperr.New(apperr.CodeValidation, "at least one purpose is required")
	}
	purposes := make([]store.PaymentPurpose, 0, len(in.Purposes))
	for i, p := range in.Purposes {
		if !p.Type.Valid() {
			return "", apperr.New(apperr.CodeValidation, fmt.Sprintf("purpose %d: invalid type %q", i+1, p.Type))
		}
		if p.Amount.IsNegative() {
			return "", apperr.New(apperr.CodeValidation, fmt.Sprintf("purpose %d: amount must not be negative", i+1))
		}
		images, err := s.evidence.ConvertAll(p.Images)
		if err != nil {
			return "", fmt.Errorf("purpose %d: %w", i+1, err)
		}
		purposes = append(purposes, store.PaymentPurpose{
			Type:    p.Type,
			Amount:  p.Amount,
			Images:  images,
			Remarks: p.Remarks,
		})
	}

	now := s.Now()
	pr := &store.PaymentRequest{
		ID:               in.ID,
		ProjectID:        in.ProjectID,
		ProgressUpdateID: in.ProgressUpdateID,
		LeaderID:         in.LeaderID,
		Date:             now.UTC(),
		Purposes:         purposes,
		TotalAmount:      TotalAmount(purposes),
		Status:           store.PaymentPending,
		UpdatedAt:        now.UTC(),
	}

	err = s.backend.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Lock(ctx, store.ProjectKey(in.ProjectID)); err != nil {
			return err
		}
		p, err := loadProject(ctx, tx, in.ProjectID)
		if err != nil {
			return err
		}
		if !window.IsOpen(p.PaymentTimeWindow, s.Now()) {
			return outsideWindow("payment requests", p.PaymentTimeWindow)
		}
		if err := tx.Insert(ctx, pr); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return apperr.New(apperr.CodeDuplicateID, fmt.Sprintf("payment request %s already exists", pr.ID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeOutsideWindow) {
			s.log.InfoContext(ctx, "payment rejected outside window", "project_id", in.ProjectID)
		}
		return "", storeErr("submit payment", err)
	}
	s.log.InfoContext(ctx, "payment requested", "payment_id", pr.ID, "project_id", pr.ProjectID, "total", pr.TotalAmount.String())
	return pr.ID, nil
}

func (s *Service) Payment(ctx context.Context, id string) (*store.PaymentRequest, error) {
	pr, err := store.GetPayment(ctx, s.backend, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "payment request not found")
		}
		return nil, storeErr("load payment", err)
	}
	return pr, nil
}

func (s *Service) PaymentsForProject(ctx context.Context, projectID string) (_ []*store.PaymentRequest, err error) {
	ctx, span := s.start(ctx, "PaymentsForProject", attribute.String("project.id", projectID))
	defer func() { finish(span, err) }()

	if _, err := loadProject(ctx, s.backend, projectID); err != nil {
		return nil, err
	}
	payments, err := store.PaymentsForProject(ctx, s.backend, projectID)
	if err != nil {
		return nil, storeErr("list payments", err)
	}
	return payments, nil
}

// SetPaymentStatus moves a payment request along its review workflow.
func (s *Service) SetPaymentStatus(ctx context.Context, id string, status store.PaymentStatus) (_ *store.PaymentRequest, err error) {
	ctx, span := s.start(ctx, "SetPaymentStatus", attribute.String("payment.id", id))
	defer func() { finish(span, err) }()

	var out *store.PaymentRequest
	err = s.backend.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Lock(ctx, store.PaymentKey(id)); err != nil {
			return err
		}
		pr, err := store.GetPayment(ctx, tx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.New(apperr.CodeNotFound, "payment request not found")
			}
			return err
		}
		if !canTransition(pr.Status, status) {
			return apperr.New(apperr.CodeValidation, fmt.Sprintf("cannot move payment from %s to %s", pr.Status, status))
		}
		pr.Status = status
		pr.UpdatedAt = s.clock().UTC()
		if err := tx.Put(ctx, pr); err != nil {
			return err
		}
		out = pr
		return nil
	})
	if err != nil {
		return nil, storeErr("set payment status", err)
	}
	s.log.InfoContext(ctx, "payment status changed", "payment_id", id, "status", status)
	return out, nil
}

func canTransition(from, to store.PaymentStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
