package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
	"taxatlas/internal/engine"
	"taxatlas/internal/port"
)

// CalculateInput is the DTO for requesting a tax calculation.
type CalculateInput struct {
	CalculableType string                `json:"calculable_type" binding:"required"`
	CalculableID   uuid.UUID             `json:"calculable_id" binding:"required"`
	ClientID       uuid.UUID             `json:"client_id" binding:"required"`
	BaseAmount     decimal.Decimal       `json:"base_amount"`
	Quantity       decimal.Decimal       `json:"quantity"`
	ServiceType    string                `json:"service_type" binding:"required"`
	TaxCategory    string                `json:"tax_category" binding:"required"`
	Address        domain.ServiceAddress `json:"address" binding:"required"`
	AsOfDate       *time.Time            `json:"as_of_date"`
}

// ReviewInput is the DTO for human validate/dispute actions.
type ReviewInput struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Notes  string    `json:"notes"`
}

// CalculationService defines the calculation workflow contract.
type CalculationService interface {
	Calculate(ctx context.Context, tenantID uuid.UUID, input CalculateInput) (*domain.TaxCalculation, error)
	GetByID(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error)
	List(ctx context.Context, tenantID uuid.UUID, filter port.CalculationListFilter, offset, limit int) ([]domain.TaxCalculation, int, error)
	Validate(ctx context.Context, tenantID uuid.UUID, calculationID string, input ReviewInput) (*domain.TaxCalculation, error)
	Dispute(ctx context.Context, tenantID uuid.UUID, calculationID string, input ReviewInput) (*domain.TaxCalculation, error)
	Recalculate(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error)
}

type calculationService struct {
	engine      *engine.Engine
	repo        port.CalculationRepository
	email       port.EmailSender
	reviewInbox string
}

// NewCalculationService creates a new CalculationService implementation.
func NewCalculationService(eng *engine.Engine, repo port.CalculationRepository, email port.EmailSender, reviewInbox string) CalculationService {
	return &calculationService{engine: eng, repo: repo, email: email, reviewInbox: reviewInbox}
}

func (s *calculationService) Calculate(ctx context.Context, tenantID uuid.UUID, input CalculateInput) (*domain.TaxCalculation, error) {
	asOf := time.Time{}
	if input.AsOfDate != nil {
		asOf = *input.AsOfDate
	}
	calc, err := s.engine.Calculate(ctx, engine.Input{
		TenantID: tenantID,
		Calculable: domain.CalculableRef{
			Kind: domain.CalculableType(input.CalculableType),
			ID:   input.CalculableID,
		},
		ClientID:    input.ClientID,
		BaseAmount:  input.BaseAmount,
		Quantity:    input.Quantity,
		ServiceType: input.ServiceType,
		TaxCategory: input.TaxCategory,
		Address:     input.Address,
		AsOf:        asOf,
	})
	if err != nil {
		return nil, err
	}
	s.notifyIfReviewNeeded(ctx, calc)
	return calc, nil
}

func (s *calculationService) GetByID(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error) {
	return s.repo.GetByCalculationID(ctx, tenantID, calculationID)
}

func (s *calculationService) List(ctx context.Context, tenantID uuid.UUID, filter port.CalculationListFilter, offset, limit int) ([]domain.TaxCalculation, int, error) {
	return s.repo.List(ctx, tenantID, filter, offset, limit)
}

func (s *calculationService) Validate(ctx context.Context, tenantID uuid.UUID, calculationID string, input ReviewInput) (*domain.TaxCalculation, error) {
	return s.transition(ctx, tenantID, calculationID, domain.CalculationValidated, input)
}

func (s *calculationService) Dispute(ctx context.Context, tenantID uuid.UUID, calculationID string, input ReviewInput) (*domain.TaxCalculation, error) {
	return s.transition(ctx, tenantID, calculationID, domain.CalculationDisputed, input)
}

func (s *calculationService) Recalculate(ctx context.Context, tenantID uuid.UUID, calculationID string) (*domain.TaxCalculation, error) {
	calc, err := s.engine.Recalculate(ctx, tenantID, calculationID)
	if err != nil {
		return nil, err
	}
	s.notifyIfReviewNeeded(ctx, calc)
	return calc, nil
}

// transition applies a guarded status change, appending to the immutable
// status history.
func (s *calculationService) transition(ctx context.Context, tenantID uuid.UUID, calculationID string, to domain.CalculationStatus, input ReviewInput) (*domain.TaxCalculation, error) {
	calc, err := s.repo.GetByCalculationID(ctx, tenantID, calculationID)
	if err != nil {
		return nil, err
	}
	if !calc.CanTransition(to) {
		return nil, domain.ErrInvalidStatusTransition
	}

	events, err := calc.DecodeStatusHistory()
	if err != nil {
		return nil, fmt.Errorf("decoding status history: %w", err)
	}
	now := time.Now().UTC()
	events = append(events, domain.StatusEvent{
		From:       calc.Status,
		To:         to,
		Actor:      input.UserID.String(),
		Note:       input.Notes,
		OccurredAt: now,
	})
	history, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encoding status history: %w", err)
	}

	calc.Status = to
	calc.StatusHistory = history
	if to == domain.CalculationValidated {
		calc.NeedsReview = false
		calc.ValidatedBy = &input.UserID
		calc.ValidatedAt = &now
		calc.ValidationNotes = input.Notes
	}
	if err := s.repo.UpdateStatus(ctx, calc); err != nil {
		return nil, err
	}
	return calc, nil
}

func (s *calculationService) notifyIfReviewNeeded(ctx context.Context, calc *domain.TaxCalculation) {
	if !calc.NeedsReview || s.email == nil {
		return
	}
	reason := string(calc.ResolutionMethod)
	if calc.NoRateFound {
		reason = "no applicable rate"
	}
	if err := s.email.SendReviewNotification(ctx, s.reviewInbox, calc.CalculationID, reason); err != nil {
		log.Printf("service.CalculationService: review notification for %s failed: %v", calc.CalculationID, err)
	}
}
